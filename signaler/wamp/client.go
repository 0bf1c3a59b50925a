package wamp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

var (
	errMalformed = errors.New("event should carry one string argument")
	ErrClosed    = errors.New("wamp channel is closed")
)

// Channel is the signaling channel of one endpoint on a WAMP router.
type Channel struct {
	id     string
	client *client.Client
	logger *logrus.Entry

	mu     sync.Mutex
	out    chan signaler.Message
	done   chan struct{}
	closed bool
}

var _ signaler.Channel = (*Channel)(nil)

// Dial connects endpoint id to the router at url, e.g. ws://host:port/.
func Dial(ctx context.Context, url, realm, id string, logger *logrus.Entry) (_ *Channel, err error) {
	defer err2.Handle(&err)
	logger = channelLogger(logger, id)
	cli := try.To1(client.ConnectNet(ctx, url, client.Config{
		Realm:  realm,
		Logger: logger,
	}))
	return newChannel(id, cli, logger), nil
}

// Local connects endpoint id to an in-process router.
func Local(r router.Router, realm, id string, logger *logrus.Entry) (_ *Channel, err error) {
	defer err2.Handle(&err)
	logger = channelLogger(logger, id)
	cli := try.To1(client.ConnectLocal(r, client.Config{
		Realm:  realm,
		Logger: logger,
	}))
	return newChannel(id, cli, logger), nil
}

func channelLogger(logger *logrus.Entry, id string) *logrus.Entry {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return logger.WithFields(logrus.Fields{"prefix": "wamp", "endpoint": id})
}

func newChannel(id string, cli *client.Client, logger *logrus.Entry) *Channel {
	return &Channel{
		id:     id,
		client: cli,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *Channel) Send(ctx context.Context, msg signaler.Message) (err error) {
	defer err2.Handle(&err)
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := ReportsTopic
	if msg.To != "" {
		topic = Topic(msg.To)
	}
	raw := try.To1(json.Marshal(msg))
	try.To(c.client.Publish(topic, nil, wamp.List{string(raw)}, nil))
	return nil
}

func (c *Channel) Accept() (ch <-chan signaler.Message, err error) {
	defer err2.Handle(&err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.out != nil {
		return c.out, nil
	}
	out := make(chan signaler.Message, 64)
	try.To(c.client.Subscribe(Topic(c.id), func(event *wamp.Event) {
		msg, err := decode(event)
		if err != nil {
			c.logger.WithError(err).Warn("Ignoring malformed event")
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		select {
		case out <- msg:
		default:
			c.logger.WithField("type", msg.Type).Warn("Inbound queue full, dropping signal")
		}
	}, nil))
	c.out = out
	return out, nil
}

func (c *Channel) Close() (err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	if c.out != nil {
		close(c.out)
	}
	c.mu.Unlock()
	return c.client.Close()
}
