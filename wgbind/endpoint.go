package wgbind

import (
	"context"
	"errors"
	"net/netip"
	"sync"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession"
	"golang.zx2c4.com/wireguard/conn"
)

var ErrEndpointNotReady = errors.New("endpoint data channel is not ready")

// Endpoint is a remote signaling endpoint. Its data session is dialed on
// the first Send and redialed once it closes.
type Endpoint struct {
	id   string
	bind *Bind

	dialL sync.Mutex

	mu sync.Mutex
	ds *rtcsession.DataSession
	ch rtcsession.Channel
}

var _ conn.Endpoint = (*Endpoint)(nil)

// used for mac2 cookie calculations
func (ep *Endpoint) DstToBytes() []byte {
	return []byte(ep.id)
}
func (ep *Endpoint) DstToString() string { return ep.id }

func (*Endpoint) ClearSrc()           {}
func (*Endpoint) SrcToString() string { return "" }
func (*Endpoint) DstIP() netip.Addr   { return netip.Addr{} }
func (*Endpoint) SrcIP() netip.Addr   { return netip.Addr{} }

func (ep *Endpoint) channel() rtcsession.Channel {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.ch
}

// Send writes data to the endpoint. A failed write drops the session so
// that the next Send dials a new one.
func (ep *Endpoint) Send(data []byte) (err error) {
	ch := ep.channel()
	if ch == nil {
		if ch, err = ep.dial(); err != nil {
			return err
		}
	}
	if err = ch.Send(data); err != nil {
		var stale *rtcsession.DataSession
		ep.mu.Lock()
		if ep.ch == ch {
			stale = ep.ds
			ep.ds, ep.ch = nil, nil
		}
		ep.mu.Unlock()
		if stale != nil {
			stale.Close()
		}
	}
	return err
}

// dial opens a data session to the endpoint unless one came up meanwhile.
func (ep *Endpoint) dial() (ch rtcsession.Channel, err error) {
	defer err2.Handle(&err)
	ep.dialL.Lock()
	defer ep.dialL.Unlock()
	if ch := ep.channel(); ch != nil {
		return ch, nil
	}
	b := ep.bind
	ds := try.To1(b.client.Connect(ep.id))
	ctx, cancel := context.WithTimeout(context.Background(), b.DialTimeout)
	defer cancel()
	ch, err = ds.Channel(ctx)
	if err != nil {
		ds.Close()
		return nil, err
	}
	ep.attach(ds, ch)
	return ch, nil
}

// await attaches an accepted data session once its channel opens.
func (ep *Endpoint) await(ds *rtcsession.DataSession, done chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	ch, err := ds.Channel(ctx)
	if err != nil {
		ep.bind.log.WithError(err).WithField("endpoint", ep.id).Debug("Incoming session never opened")
		ds.Close()
		return
	}
	ep.attach(ds, ch)
}

func (ep *Endpoint) attach(ds *rtcsession.DataSession, ch rtcsession.Channel) {
	ep.mu.Lock()
	old := ep.ds
	ep.ds, ep.ch = ds, ch
	ep.mu.Unlock()
	ds.OnClose(func(rtcsession.CloseEvent) { ep.detach(ds) })
	ch.OnMessage(ep.bind.receiveMsg(ep))
	if old != nil && old != ds {
		old.Close()
	}
}

// detach forgets ds if it is still the current session.
func (ep *Endpoint) detach(ds *rtcsession.DataSession) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.ds == ds {
		ep.ds, ep.ch = nil, nil
	}
}

func (ep *Endpoint) hangup() {
	ep.mu.Lock()
	ds := ep.ds
	ep.ds, ep.ch = nil, nil
	ep.mu.Unlock()
	if ds != nil {
		ds.Close()
	}
}
