package rtcsession

import (
	"errors"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/internal/enginetest"
	"github.com/shynome/rtcsession/internal/testlog"
	"github.com/shynome/rtcsession/negotiation"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func wait(t *testing.T, s *Session) CloseEvent {
	t.Helper()
	select {
	case <-s.Done():
		return s.Result()
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close")
	}
	return CloseEvent{}
}

func newTestSession(t *testing.T, role negotiation.Role, auto bool) (*Session, *enginetest.Signals) {
	signals := &enginetest.Signals{}
	net := enginetest.NewNetwork()
	s := NewSession(SessionConfig{
		Info: negotiation.Info{
			ID:                "s1",
			Role:              role,
			LocalEndpointID:   "alice",
			LocalConnectionID: "c-alice",
			RemoteEndpointID:  "bob",
			Capabilities:      negotiation.Capabilities{DataChannel: true},
		},
		Transport:   net.Factory,
		Signaling:   signals,
		Logger:      testlog.Entry(t, "session"),
		AutoApprove: auto,
	})
	return s, signals
}

func TestSessionHangupIdempotent(t *testing.T) {
	s, signals := newTestSession(t, negotiation.Initiator, true)
	closes := make(chan CloseEvent, 4)
	s.OnClose(func(ev CloseEvent) { closes <- ev })
	try.To(s.Start())
	assert.Equal(s.State(), negotiation.Offered)

	try.To(s.Close())
	try.To(s.Close())
	try.To(s.Hangup(CloseOptions{Reason: "again"}))

	ev := wait(t, s)
	assert.That(ev.SentSignal)
	assert.Equal(ev.Reason, "hangup method called")
	assert.Equal(ev.From, negotiation.Offered)
	assert.Equal(len(closes), 1)
	offers, _, _, terminates, reports := signals.Count()
	assert.Equal(offers, 1)
	assert.Equal(terminates, 1)
	assert.Equal(reports, 1)
	assert.Equal(s.State(), negotiation.Ended)
	assert.That(!s.IsActive())
	assert.Equal(s.Approve(), negotiation.ErrTransportUnavailable)
}

func TestSessionSuppressedBye(t *testing.T) {
	s, signals := newTestSession(t, negotiation.Initiator, false)
	try.To(s.Start())
	assert.Equal(s.State(), negotiation.AwaitingApproval)
	try.To(s.Close())
	ev := wait(t, s)
	assert.That(!ev.SentSignal)
	_, _, _, terminates, reports := signals.Count()
	assert.Equal(terminates, 0)
	assert.Equal(reports, 1)
}

func TestSessionMediaFailed(t *testing.T) {
	s, signals := newTestSession(t, negotiation.Initiator, false)
	try.To(s.Start())
	try.To(s.MediaFailed(errors.New("no microphone")))
	ev := wait(t, s)
	assert.Equal(ev.From, negotiation.MediaCaptureFailed)
	assert.Equal(ev.Reason, "media capture failed: no microphone")
	assert.That(!ev.SentSignal)
	assert.Equal(s.State(), negotiation.Ended)
	_, _, _, terminates, _ := signals.Count()
	assert.Equal(terminates, 0)
}

func TestSessionRejectIsSilent(t *testing.T) {
	offer := negotiation.SDP{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n"}
	for _, offered := range []bool{false, true} {
		s, signals := newTestSession(t, negotiation.Responder, false)
		try.To(s.Start())
		if offered {
			try.To(s.ReceiveOffer(offer))
		}
		try.To(s.Reject("busy"))
		ev := wait(t, s)
		assert.That(!ev.SentSignal)
		assert.Equal(ev.Reason, "approved gate rejected: busy")
		_, answers, _, terminates, reports := signals.Count()
		assert.Equal(answers, 0)
		assert.Equal(terminates, 0)
		assert.Equal(reports, 1)
	}
}

func TestSessionRemoteBye(t *testing.T) {
	s, signals := newTestSession(t, negotiation.Responder, false)
	try.To(s.Start())
	try.To(s.ReceiveTerminate(""))
	ev := wait(t, s)
	assert.Equal(ev.Reason, remoteHangup)
	assert.That(!ev.SentSignal)
	_, _, _, terminates, _ := signals.Count()
	assert.Equal(terminates, 0)
}

func TestSessionConnectedElsewhere(t *testing.T) {
	s, _ := newTestSession(t, negotiation.Responder, false)
	try.To(s.Start())
	try.To(s.ReceiveConnected("c-alice"))
	assert.That(s.State() != negotiation.Ended)
	try.To(s.ReceiveConnected("c-other"))
	ev := wait(t, s)
	assert.That(!ev.SentSignal)
}

func TestSessionStateEvents(t *testing.T) {
	s, _ := newTestSession(t, negotiation.Initiator, false)
	states := make(chan State, 8)
	s.OnStateChange(func(st State) { states <- st })
	try.To(s.Start())
	try.To(s.Approve())
	assert.Equal(s.Approve(), negotiation.ErrDuplicateSignal)
	s.Close()
	wait(t, s)
	want := []State{negotiation.AwaitingApproval, negotiation.Approved, negotiation.Offered, negotiation.Ended}
	for _, st := range want {
		assert.Equal(<-states, st)
	}
}

func TestWatchdog(t *testing.T) {
	s, signals := newTestSession(t, negotiation.Responder, false)
	Watch(s, Timeouts{Answer: 20 * time.Millisecond})
	try.To(s.Start())
	ev := wait(t, s)
	assert.Equal(ev.Reason, "answer own call timer")
	assert.That(ev.SentSignal)
	_, _, _, terminates, _ := signals.Count()
	assert.Equal(terminates, 1)
}
