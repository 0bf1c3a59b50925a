package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession"
	"github.com/shynome/rtcsession/engine"
	"github.com/shynome/rtcsession/internal/testlog"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/signaler/local"
)

func TestInitiatorOffer(t *testing.T) {
	eng := try.To1(engine.New(engine.Config{}, testlog.Entry(t, "engine")))
	defer eng.Close()

	tr := try.To1(eng.NewTransport(negotiation.Info{
		ID:           "x",
		Role:         negotiation.Initiator,
		Direction:    negotiation.RecvOnly,
		Capabilities: negotiation.Capabilities{Audio: true, DataChannel: true},
	}, negotiation.TransportEvents{}))
	defer tr.Close()

	offer := try.To1(tr.CreateOffer())
	assert.Equal(offer.Type, webrtc.SDPTypeOffer)
	caps := try.To1(negotiation.Describe(offer))
	assert.That(caps.Audio)
	assert.That(!caps.Video)
	assert.That(caps.DataChannel)

	try.To(tr.(negotiation.Media).SetMedia(negotiation.Capabilities{Audio: true, Video: true}, negotiation.SendRecv))
	offer = try.To1(tr.CreateOffer())
	caps = try.To1(negotiation.Describe(offer))
	assert.That(caps.Audio && caps.Video)
}

func TestResponderStartsEmpty(t *testing.T) {
	eng := try.To1(engine.New(engine.Config{}, testlog.Entry(t, "engine")))
	defer eng.Close()
	tr := try.To1(eng.NewTransport(negotiation.Info{
		ID:           "x",
		Role:         negotiation.Responder,
		Capabilities: negotiation.Capabilities{DataChannel: true},
	}, negotiation.TransportEvents{}))
	defer tr.Close()
	assert.That(!tr.Connected())
	_, err := tr.CreateAnswer()
	assert.That(err != nil, "answer without a remote offer")
}

func TestDataSession(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real peer connections")
	}
	eng := try.To1(engine.New(engine.Config{}, testlog.Entry(t, "engine")))
	defer eng.Close()

	hub := local.NewHub()
	newClient := func(id string) *rtcsession.Client {
		server := local.NewServer()
		hub.Register(id, server)
		c := rtcsession.NewClient(rtcsession.Config{
			EndpointID: id,
			Channel:    server,
			Transport:  eng.NewTransport,
			Logger:     testlog.Entry(t, id),
		})
		try.To(c.Open())
		t.Cleanup(func() { c.Close() })
		return c
	}
	alice, bob := newClient("alice"), newClient("bob")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ds := try.To1(alice.Connect("bob"))
	var incoming *rtcsession.Session
	select {
	case incoming = <-bob.Accept():
	case <-ctx.Done():
		t.Fatal("no incoming session")
	}
	try.To(incoming.Approve())

	ch := try.To1(ds.Channel(ctx))
	peer := try.To1(incoming.DataSession().Channel(ctx))
	assert.Equal(ch.Label(), engine.DataLabel)
	assert.Equal(peer.Label(), engine.DataLabel)

	got := make(chan string, 16)
	peer.OnMessage(func(data []byte) { got <- string(data) })
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for received := false; !received; {
		try.To(ch.Send([]byte("ping")))
		select {
		case msg := <-got:
			assert.Equal(msg, "ping")
			received = true
		case <-tick.C:
		case <-ctx.Done():
			t.Fatal("message not delivered")
		}
	}

	try.To(ds.Close())
	select {
	case <-incoming.Done():
	case <-ctx.Done():
		t.Fatal("remote session did not close")
	}
	assert.That(!incoming.Result().SentSignal)
}
