package rtcsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/capture"
	"github.com/shynome/rtcsession/internal/enginetest"
	"github.com/shynome/rtcsession/internal/testlog"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/signaler/local"
)

type endpoints struct {
	hub   *local.Hub
	net   *enginetest.Network
	alice *Client
	bob   *Client
}

func newEndpoints(t *testing.T, mod func(name string, cfg *Config)) *endpoints {
	hub := local.NewHub()
	net := enginetest.NewNetwork()
	net.Candidates = []negotiation.Candidate{enginetest.Host(1), enginetest.Relay(2)}
	newClient := func(name string) *Client {
		server := local.NewServer()
		hub.Register(name, server)
		cfg := Config{
			EndpointID: name,
			Channel:    server,
			Transport:  net.Factory,
			Logger:     testlog.Entry(t, name),
		}
		if mod != nil {
			mod(name, &cfg)
		}
		c := NewClient(cfg)
		try.To(c.Open())
		t.Cleanup(func() { c.Close() })
		return c
	}
	return &endpoints{
		hub:   hub,
		net:   net,
		alice: newClient("alice"),
		bob:   newClient("bob"),
	}
}

func accept(t *testing.T, c *Client) *Session {
	t.Helper()
	select {
	case s := <-c.Accept():
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no incoming session")
	}
	return nil
}

func channelOf(t *testing.T, d *DataSession) Channel {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return try.To1(d.Channel(ctx))
}

func TestConnect(t *testing.T) {
	ep := newEndpoints(t, nil)

	ds := try.To1(ep.alice.Connect("bob"))
	incoming := accept(t, ep.bob)
	assert.Equal(incoming.InitialRole(), negotiation.Responder)
	assert.That(incoming.Call() == nil)
	remote := incoming.DataSession()
	assert.That(remote != nil)
	try.To(incoming.Approve())

	local, peer := channelOf(t, ds), channelOf(t, remote)
	assert.Equal(local.Label(), DefaultLabel)
	assert.Equal(peer.Label(), DefaultLabel)

	got := make(chan string, 1)
	peer.OnMessage(func(data []byte) { got <- string(data) })
	try.To(ds.Send([]byte("ping")))
	assert.Equal(<-got, "ping")

	eventually(t, func() bool { return ds.State() == negotiation.Flowing })
	eventually(t, func() bool { return incoming.State() == negotiation.Flowing })
	assert.That(ds.IsActive())
	assert.That(ds.RemoteCapabilities().DataChannel)

	try.To(ep.alice.Close())
	ev := wait(t, incoming)
	assert.That(!ev.SentSignal)
	assert.Equal(ev.Reason, "hangup method called")
	assert.That(wait(t, ds.Session).SentSignal)
	eventually(t, func() bool { return len(ep.hub.Reports()) == 2 })
	for _, r := range ep.hub.Reports() {
		assert.Equal(r.StoppedReason, "hangup method called")
		assert.Equal(len(r.SDPsSent), 1)
		assert.Equal(len(r.SDPsReceived), 1)
	}
	assert.Equal(len(ep.alice.Sessions()), 0)
	_, err := ep.alice.Connect("bob")
	assert.That(errors.Is(err, ErrClientClosed))
}

func TestRelayOnlyClient(t *testing.T) {
	ep := newEndpoints(t, func(name string, cfg *Config) {
		cfg.RelayOnly = name == "alice"
	})
	ds := try.To1(ep.alice.Connect("bob"))
	incoming := accept(t, ep.bob)
	try.To(incoming.Approve())
	channelOf(t, ds)

	try.To(ds.Close())
	ev := wait(t, ds.Session)
	assert.Equal(len(ev.Report.CandidatesSent), 1)
	assert.That(ev.Report.RelayOnly)
	assert.Equal(len(wait(t, incoming).Report.CandidatesReceived), 1)
}

type source struct{ closed bool }

func (s *source) Close() error {
	s.closed = true
	return nil
}

func TestCallRejected(t *testing.T) {
	ep := newEndpoints(t, nil)
	reg := capture.NewRegistry(testlog.Entry(t, "capture"))
	mic := capture.Constraints{Audio: true}
	src := &source{}
	handle := try.To1(reg.Acquire(mic, func(capture.Constraints) (capture.Source, error) {
		return src, nil
	}))

	call := try.To1(ep.alice.Call("bob", CallOptions{Audio: true, Capture: handle}))
	assert.Equal(call.State(), negotiation.Offered)
	incoming := accept(t, ep.bob)
	assert.That(incoming.Call() != nil)
	assert.That(incoming.DataSession() == nil)
	try.To(incoming.Reject("busy"))

	ev := wait(t, incoming)
	assert.That(!ev.SentSignal)
	assert.Equal(ev.Reason, "approved gate rejected: busy")
	assert.Equal(call.State(), negotiation.Offered)
	assert.Equal(reg.Refs(mic), 1)

	try.To(call.Close())
	remote := wait(t, call.Session)
	assert.That(remote.SentSignal)
	assert.Equal(reg.Refs(mic), 0)
	assert.That(src.closed)
}

func TestCallMedia(t *testing.T) {
	ep := newEndpoints(t, nil)
	call := try.To1(ep.alice.Call("bob", CallOptions{Audio: true, Video: true}))
	assert.Equal(call.State(), negotiation.AwaitingApproval)
	try.To(call.Answer())
	incoming := accept(t, ep.bob)
	caps := incoming.RemoteCapabilities()
	assert.That(caps.Audio && caps.Video && !caps.DataChannel)
	try.To(incoming.Call().Answer())

	eventually(t, func() bool { return len(call.Streams()) == 1 })
	eventually(t, func() bool { return len(incoming.Call().Streams()) == 1 })
	assert.Equal(call.Streams()[0].Kind, negotiation.StreamMedia)
}

func TestRenegotiateChannel(t *testing.T) {
	ep := newEndpoints(t, nil)
	ds := try.To1(ep.alice.Connect("bob"))
	incoming := accept(t, ep.bob)
	try.To(incoming.Approve())
	remote := incoming.DataSession()
	channelOf(t, ds)
	channelOf(t, remote)

	agreed := make(chan ModifyEvent, 4)
	ds.OnModify(func(ev ModifyEvent) {
		if ev.Phase == ModifySettled {
			agreed <- ev
		}
	})
	pending := try.To1(remote.OpenChannel("chat"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	try.To1(pending.Wait(ctx))

	eventually(t, func() bool { return ds.Labeled("chat") != nil && remote.Labeled("chat") != nil })
	got := make(chan string, 1)
	ds.Labeled("chat").OnMessage(func(data []byte) { got <- string(data) })
	try.To(remote.Labeled("chat").Send([]byte("hi")))
	assert.Equal(<-got, "hi")

	ev := <-agreed
	assert.That(ev.Err == nil)
	assert.Equal(ev.Change.Label, "chat")
	assert.Equal(ds.Role(), negotiation.Responder)
	assert.Equal(incoming.Role(), negotiation.Initiator)
	assert.Equal(ds.State(), negotiation.Flowing)
}

func TestIncomingAfterClose(t *testing.T) {
	ep := newEndpoints(t, nil)
	try.To(ep.bob.Close())
	ds := try.To1(ep.alice.Connect("bob"))
	assert.Equal(ds.State(), negotiation.Offered)
	try.To(ds.Close())
	wait(t, ds.Session)
}
