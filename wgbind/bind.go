// Package wgbind carries WireGuard packets over data sessions. Endpoints are
// addressed by signaling endpoint id.
package wgbind

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shynome/rtcsession"
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/conn"
)

var ErrEndpointImpl = errors.New("endpoint is not a wgbind.Endpoint")

type Bind struct {
	client *rtcsession.Client
	log    *logrus.Entry
	// DialTimeout bounds how long a first Send to an endpoint waits for its
	// data session.
	DialTimeout time.Duration

	mu    sync.Mutex
	eps   map[string]*Endpoint
	msgCh chan packetMsg
	done  chan struct{}

	closed uint32
}

var _ conn.Bind = (*Bind)(nil)

// NewBind returns a bind over client. The client must be open; the bind
// approves every incoming data session while it is open.
func NewBind(client *rtcsession.Client, log *logrus.Entry) *Bind {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bind{
		client:      client,
		log:         log.WithField("prefix", "wgbind"),
		DialTimeout: 10 * time.Second,
		eps:         map[string]*Endpoint{},
		closed:      1,
	}
}

func (b *Bind) Open(port uint16) (fns []conn.ReceiveFunc, actualPort uint16, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isClosed() {
		return nil, 0, conn.ErrBindAlreadyOpen
	}
	b.msgCh = make(chan packetMsg, b.BatchSize())
	b.done = make(chan struct{})
	go b.accept(b.done)

	atomic.StoreUint32(&b.closed, 0)
	return []conn.ReceiveFunc{b.receiveFunc(b.msgCh, b.done)}, port, nil
}

func (b *Bind) accept(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-b.client.Done():
			return
		case s := <-b.client.Accept():
			ds := s.DataSession()
			if ds == nil {
				s.Reject("only data sessions are accepted")
				continue
			}
			info, err := s.Info()
			if err == nil {
				err = s.Approve()
			}
			if err != nil {
				b.log.WithError(err).Debug("Couldn't approve session")
				continue
			}
			go b.endpoint(info.RemoteEndpointID).await(ds, done)
		}
	}
}

type packetMsg struct {
	data []byte
	ep   conn.Endpoint
}

func (b *Bind) receiveFunc(msgCh chan packetMsg, done chan struct{}) conn.ReceiveFunc {
	return func(packets [][]byte, sizes []int, eps []conn.Endpoint) (n int, err error) {
		select {
		case <-done:
			return 0, net.ErrClosed
		case msg := <-msgCh:
			sizes[0] = copy(packets[0], msg.data)
			eps[0] = msg.ep
			return 1, nil
		}
	}
}

func (b *Bind) receiveMsg(ep *Endpoint) func(data []byte) {
	b.mu.Lock()
	msgCh, done := b.msgCh, b.done
	b.mu.Unlock()
	return func(data []byte) {
		if b.isClosed() {
			return
		}
		select {
		case msgCh <- packetMsg{data: data, ep: ep}:
		case <-done:
		}
	}
}

// endpoint returns the endpoint of remote, creating it on first use.
func (b *Bind) endpoint(remote string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep, ok := b.eps[remote]
	if !ok {
		ep = &Endpoint{id: remote, bind: b}
		b.eps[remote] = ep
	}
	return ep
}

func (b *Bind) isClosed() bool {
	return atomic.LoadUint32(&b.closed) != 0
}

// Close hangs up every data session of the bind. The client stays open.
func (b *Bind) Close() error {
	b.mu.Lock()
	if b.isClosed() {
		b.mu.Unlock()
		return nil
	}
	atomic.StoreUint32(&b.closed, 1)
	close(b.done)
	eps := make([]*Endpoint, 0, len(b.eps))
	for _, ep := range b.eps {
		eps = append(eps, ep)
	}
	b.mu.Unlock()

	for _, ep := range eps {
		ep.hangup()
	}
	return nil
}

func (b *Bind) ParseEndpoint(s string) (ep conn.Endpoint, err error) {
	if s == "" {
		return nil, errors.New("empty endpoint id")
	}
	return b.endpoint(s), nil
}

func (b *Bind) Send(bufs [][]byte, ep conn.Endpoint) (err error) {
	if b.isClosed() {
		return net.ErrClosed
	}
	sender, ok := ep.(*Endpoint)
	if !ok {
		return ErrEndpointImpl
	}
	for _, buf := range bufs {
		if err := sender.Send(buf); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bind) SetMark(mark uint32) error { return nil }
func (b *Bind) BatchSize() int            { return 1 }
