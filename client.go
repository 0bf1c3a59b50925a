package rtcsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/capture"
	"github.com/shynome/rtcsession/internal/loop"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

var (
	ErrClientClosed = errors.New("client is closed")
	ErrNoTransport  = errors.New("client has no transport factory")
)

type Config struct {
	EndpointID string
	Channel    signaler.Channel
	Transport  negotiation.TransportFactory
	Logger     *logrus.Entry

	RelayOnly bool
	NoRelay   bool
	// Timeouts arms a watchdog on every session when set.
	Timeouts *Timeouts
	// SendTimeout bounds a single signaling send.
	SendTimeout time.Duration
}

// Client owns the sessions of one endpoint connection and routes signaling
// messages between them and the signaling channel.
type Client struct {
	cfg  Config
	id   string
	conn string
	log  *logrus.Entry

	outbox *loop.Loop

	sessions  map[string]*Session
	sessionsL sync.Mutex

	accept chan *Session
	done   chan struct{}
	closed uint32
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	c := &Client{
		cfg:  cfg,
		id:   cfg.EndpointID,
		conn: uuid.NewString(),

		outbox:   loop.New(),
		sessions: map[string]*Session{},
		accept:   make(chan *Session),
		done:     make(chan struct{}),
	}
	c.log = cfg.Logger.WithField("endpoint", c.id)
	return c
}

func (c *Client) EndpointID() string   { return c.id }
func (c *Client) ConnectionID() string { return c.conn }

// Open starts receiving signaling messages.
func (c *Client) Open() (err error) {
	defer err2.Handle(&err)
	if c.isClosed() {
		return ErrClientClosed
	}
	ch := try.To1(c.cfg.Channel.Accept())
	go func() {
		for msg := range ch {
			c.dispatch(msg)
		}
	}()
	return
}

// Accept delivers sessions started by remote endpoints. Each one waits for
// Approve or Reject.
func (c *Client) Accept() <-chan *Session { return c.accept }

// Done is closed with the client.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) isClosed() bool {
	return atomic.LoadUint32(&c.closed) != 0
}

// send queues msg behind every earlier signal of this client.
func (c *Client) send(msg signaler.Message) error {
	msg.From, msg.FromConnection = c.id, c.conn
	posted := c.outbox.Post(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SendTimeout)
		defer cancel()
		if err := c.cfg.Channel.Send(ctx, msg); err != nil {
			c.log.WithError(err).WithField("type", msg.Type).Warn("Signal not delivered")
		}
	})
	if !posted {
		return ErrClientClosed
	}
	return nil
}

func (c *Client) find(id string) *Session {
	c.sessionsL.Lock()
	defer c.sessionsL.Unlock()
	return c.sessions[id]
}

func (c *Client) Sessions() []*Session {
	c.sessionsL.Lock()
	defer c.sessionsL.Unlock()
	out := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

func (c *Client) dispatch(msg signaler.Message) {
	if msg.ToConnection != "" && msg.ToConnection != c.conn {
		c.log.WithField("type", msg.Type).Debug("Ignoring signal for another connection")
		return
	}
	if s := c.find(msg.SessionID); s != nil {
		s.deliver(msg)
		return
	}
	if msg.Type != signaler.TypeOffer || msg.SDP == nil {
		c.log.WithFields(logrus.Fields{
			"type":    msg.Type,
			"session": msg.SessionID,
		}).Debug("Ignoring signal for unknown session")
		return
	}
	c.incoming(msg)
}

func (c *Client) incoming(msg signaler.Message) {
	caps, err := negotiation.Describe(*msg.SDP)
	if err != nil {
		c.log.WithError(err).Warn("Ignoring offer with unreadable SDP")
		return
	}
	s, err := c.newSession(negotiation.Info{
		ID:                 msg.SessionID,
		Role:               negotiation.Responder,
		RemoteEndpointID:   msg.From,
		RemoteConnectionID: msg.FromConnection,
		Direction:          negotiation.SendRecv,
		Capabilities:       caps,
	}, false, nil)
	if err != nil {
		c.log.WithError(err).Warn("Couldn't start incoming session")
		return
	}
	s.deliver(msg)
	go func() {
		select {
		case c.accept <- s:
		case <-c.done:
			s.Close()
		case <-s.Done():
		}
	}()
}

func (c *Client) newSession(info negotiation.Info, auto bool, handle *capture.Handle) (s *Session, err error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if c.cfg.Transport == nil {
		return nil, ErrNoTransport
	}
	info.LocalEndpointID, info.LocalConnectionID = c.id, c.conn
	info.RelayOnly, info.NoRelay = c.cfg.RelayOnly, c.cfg.NoRelay
	s = NewSession(SessionConfig{
		Info:        info,
		Transport:   c.cfg.Transport,
		Signaling:   &endpointSignaling{client: c, remote: info.RemoteEndpointID},
		Logger:      c.log,
		AutoApprove: auto,
		Capture:     handle,
	})
	if info.Capabilities.Media() {
		newCall(s)
	}
	if info.Capabilities.DataChannel {
		newDataSession(s)
	}
	if c.cfg.Timeouts != nil {
		Watch(s, *c.cfg.Timeouts)
	}
	s.detach = func() {
		c.sessionsL.Lock()
		defer c.sessionsL.Unlock()
		if c.sessions[info.ID] == s {
			delete(c.sessions, info.ID)
		}
	}
	c.sessionsL.Lock()
	c.sessions[info.ID] = s
	c.sessionsL.Unlock()
	if err = s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

type CallOptions struct {
	Audio       bool
	Video       bool
	DataChannel bool
	Direction   negotiation.Direction
	// Capture is the local media the call sends. When set the call is
	// approved at once, otherwise Answer must be called once media is ready.
	Capture *capture.Handle
}

// Call starts a media call to the remote endpoint.
func (c *Client) Call(remote string, opts CallOptions) (*Call, error) {
	if opts.Direction == "" {
		opts.Direction = negotiation.SendRecv
	}
	s, err := c.newSession(negotiation.Info{
		ID:               uuid.NewString(),
		Role:             negotiation.Initiator,
		RemoteEndpointID: remote,
		Direction:        opts.Direction,
		Capabilities: negotiation.Capabilities{
			Audio:       opts.Audio,
			Video:       opts.Video,
			DataChannel: opts.DataChannel,
		},
	}, opts.Capture != nil, opts.Capture)
	if err != nil {
		return nil, err
	}
	if s.call == nil {
		newCall(s)
	}
	return s.call, nil
}

// Connect starts a data-only session to the remote endpoint.
func (c *Client) Connect(remote string) (*DataSession, error) {
	s, err := c.newSession(negotiation.Info{
		ID:               uuid.NewString(),
		Role:             negotiation.Initiator,
		RemoteEndpointID: remote,
		Direction:        negotiation.SendRecv,
		Capabilities:     negotiation.Capabilities{DataChannel: true},
	}, true, nil)
	if err != nil {
		return nil, err
	}
	return s.data, nil
}

func (c *Client) Close() (err error) {
	defer err2.Handle(&err)
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return
	}
	for _, s := range c.Sessions() {
		s.Close()
	}
	close(c.done)
	// let the byes queued by the sessions go out first
	c.outbox.Do(func() error { return nil })
	c.outbox.Stop()
	try.To(c.cfg.Channel.Close())
	return
}
