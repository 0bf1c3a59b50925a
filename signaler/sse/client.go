package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/donovanhide/eventsource"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

// Channel is the client side of Server.
type Channel struct {
	id       string
	endpoint *url.URL
	client   *http.Client
	log      *logrus.Entry

	mu     sync.Mutex
	stream *eventsource.Stream
	done   chan struct{}
	closed bool
}

var _ signaler.Channel = (*Channel)(nil)

// NewChannel returns the channel of endpoint id on the server at endpoint.
// User info in endpoint is sent as basic auth.
func NewChannel(id string, endpoint string, log *logrus.Entry) (_ *Channel, err error) {
	defer err2.Handle(&err)
	u := try.To1(url.Parse(endpoint))
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Channel{
		id:       id,
		endpoint: u,
		client:   http.DefaultClient,
		log:      log.WithField("prefix", "sse"),
		done:     make(chan struct{}),
	}, nil
}

func (c *Channel) newReq(ctx context.Context, method string, topic string, body io.Reader) (req *http.Request, err error) {
	defer err2.Handle(&err)
	u := *c.endpoint
	q := u.Query()
	if topic != "" {
		q.Set(TopicParam, topic)
	}
	u.RawQuery = q.Encode()
	user := u.User
	u.User = nil
	req = try.To1(http.NewRequestWithContext(ctx, method, u.String(), body))
	if user != nil {
		pass, _ := user.Password()
		req.SetBasicAuth(user.Username(), pass)
	}
	return req, nil
}

func (c *Channel) Send(ctx context.Context, msg signaler.Message) (err error) {
	defer err2.Handle(&err)
	body := try.To1(json.Marshal(msg))
	req := try.To1(c.newReq(ctx, http.MethodPost, msg.To, bytes.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	res := try.To1(c.client.Do(req))
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		text, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("signal %s: %s %s", msg.Type, res.Status, bytes.TrimSpace(text))
	}
	return nil
}

func (c *Channel) Accept() (ch <-chan signaler.Message, err error) {
	defer err2.Handle(&err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("sse channel is closed")
	}
	if c.stream != nil {
		return nil, fmt.Errorf("sse channel already accepting")
	}
	req := try.To1(c.newReq(context.Background(), http.MethodGet, c.id, http.NoBody))
	stream := try.To1(eventsource.SubscribeWithRequest("", req))
	c.stream = stream

	out := make(chan signaler.Message, 64)
	go func() {
		for {
			select {
			case <-c.done:
				return
			case err := <-stream.Errors:
				c.log.WithError(err).Debug("Event stream error")
			}
		}
	}()
	go func() {
		defer close(out)
		for {
			var ev eventsource.Event
			select {
			case <-c.done:
				return
			case ev = <-stream.Events:
			}
			if ev == nil {
				return
			}
			var msg signaler.Message
			if err := json.Unmarshal([]byte(ev.Data()), &msg); err != nil {
				c.log.WithError(err).Warn("Ignoring malformed event")
				continue
			}
			select {
			case out <- msg:
			case <-c.done:
				return
			}
		}
	}()
	return out, nil
}

func (c *Channel) Close() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.stream != nil {
		c.stream.Close()
	}
	return
}
