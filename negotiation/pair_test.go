package negotiation_test

import (
	"testing"

	"github.com/shynome/rtcsession/internal/enginetest"
	"github.com/shynome/rtcsession/internal/testlog"
	"github.com/shynome/rtcsession/negotiation"
)

// wire carries signals between two peers when pumped.
type wire struct{ queue []func() }

func (w *wire) push(fn func()) { w.queue = append(w.queue, fn) }

func (w *wire) pump() {
	for len(w.queue) > 0 {
		fn := w.queue[0]
		w.queue = w.queue[1:]
		fn()
	}
}

type peer struct {
	name  string
	conn  string
	e     *negotiation.Engine
	tr    *enginetest.Transport
	other *peer
	w     *wire

	states    []negotiation.State
	failed    []error
	abandoned []error
	streams   []negotiation.Stream
	settled   []error
	reports   int
	closed    *negotiation.CloseResult
}

var _ negotiation.Signaling = (*peer)(nil)

func (p *peer) SignalOffer(s negotiation.OfferSignal) error {
	p.w.push(func() { p.other.e.ReceiveOffer(s.SDP) })
	return nil
}

func (p *peer) SignalAnswer(s negotiation.AnswerSignal) error {
	p.w.push(func() { p.other.e.AcceptRemoteAnswer(s.SDP, p.conn) })
	return nil
}

func (p *peer) SignalConnected(negotiation.ConnectedSignal) error { return nil }

func (p *peer) SignalCandidate(s negotiation.CandidateSignal) error {
	p.w.push(func() { p.other.e.RemoteCandidate(s.Candidate) })
	return nil
}

func (p *peer) SignalModify(s negotiation.ModifySignal) error {
	p.w.push(func() { p.other.e.Renegotiation().ReceiveModify(s) })
	return nil
}

func (p *peer) SignalTerminate(s negotiation.TerminateSignal) error {
	p.w.push(func() { p.other.close(negotiation.CloseOptions{Reason: s.Reason, Suppress: true}) })
	return nil
}

func (p *peer) SignalReport(negotiation.ReportSignal) error {
	p.reports++
	return nil
}

func (p *peer) close(opts negotiation.CloseOptions) {
	if res, ok := p.e.Termination().Close(opts); ok {
		p.closed = &res
	}
}

func (p *peer) count(state negotiation.State) (n int) {
	for _, s := range p.states {
		if s == state {
			n++
		}
	}
	return n
}

func newPeer(t *testing.T, name string, info negotiation.Info, net *enginetest.Network, w *wire) *peer {
	p := &peer{name: name, conn: "c-" + name, w: w}
	p.e = negotiation.NewEngine(negotiation.Config{
		Info:      info,
		Signaling: p,
		Logger:    testlog.Entry(t, name),
		Hooks: negotiation.Hooks{
			State: func(s negotiation.State) { p.states = append(p.states, s) },
			Failed: func(err error) {
				p.failed = append(p.failed, err)
				p.close(negotiation.CloseOptions{Reason: err.Error()})
			},
			Abandoned: func(err error) {
				p.abandoned = append(p.abandoned, err)
				p.close(negotiation.CloseOptions{Reason: err.Error(), Suppress: true})
			},
		},
	})
	p.e.Renegotiation().SetHooks(negotiation.ModifyHooks{
		Agreed: func(change negotiation.Change) {
			switch change.DataChannel {
			case negotiation.ChannelAdd:
				if p.e.Role() == negotiation.Initiator {
					p.tr.OpenDataChannel(change.Label)
				}
			case negotiation.ChannelRemove:
				p.tr.CloseDataChannels()
			}
			if !change.Teardown() {
				p.e.Approve()
			}
		},
		Settled: func(_ negotiation.Change, err error) { p.settled = append(p.settled, err) },
	})
	p.tr = net.NewTransport(info, negotiation.TransportEvents{
		OnCandidate: p.e.LocalCandidate,
		OnStream: func(s negotiation.Stream) {
			w.push(func() {
				p.streams = append(p.streams, s)
				p.e.StreamObserved()
			})
		},
	})
	return p
}

// newPair builds an initiator a and a responder b sharing one wire.
func newPair(t *testing.T, mod func(*negotiation.Info)) (a, b *peer, w *wire, net *enginetest.Network) {
	w = &wire{}
	net = enginetest.NewNetwork()
	net.Candidates = []negotiation.Candidate{enginetest.Host(1)}
	ia := negotiation.Info{
		ID: "s1", Role: negotiation.Initiator,
		LocalEndpointID: "a", LocalConnectionID: "c-a", RemoteEndpointID: "b",
		Capabilities: negotiation.Capabilities{DataChannel: true},
	}
	ib := negotiation.Info{
		ID: "s1", Role: negotiation.Responder,
		LocalEndpointID: "b", LocalConnectionID: "c-b", RemoteEndpointID: "a", RemoteConnectionID: "c-a",
		Capabilities: negotiation.Capabilities{DataChannel: true},
	}
	if mod != nil {
		mod(&ia)
		mod(&ib)
	}
	a = newPeer(t, "a", ia, net, w)
	b = newPeer(t, "b", ib, net, w)
	a.other, b.other = b, a
	for _, p := range []*peer{a, b} {
		p.e.Begin()
		p.e.Attach(p.tr)
	}
	return a, b, w, net
}

// connect runs the first offer/answer exchange to completion.
func connect(t *testing.T, mod func(*negotiation.Info)) (a, b *peer, w *wire) {
	a, b, w, _ = newPair(t, mod)
	a.e.Approve()
	b.e.Approve()
	w.pump()
	return a, b, w
}

func enginetestHost(n int) negotiation.Candidate { return enginetest.Host(n) }
