package rtcsession

import (
	"sync"
	"time"

	"github.com/shynome/rtcsession/negotiation"
)

type Timeouts struct {
	// Answer bounds how long an incoming session waits for approval.
	Answer time.Duration `mapstructure:"answer"`
	// ReceiveAnswer bounds how long an outgoing offer waits for an answer.
	ReceiveAnswer time.Duration `mapstructure:"receive-answer"`
	// Connection bounds the time from answer to the first stream.
	Connection time.Duration `mapstructure:"connection"`
	// Modify bounds a renegotiation round.
	Modify time.Duration `mapstructure:"modify"`
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Answer:        10 * time.Second,
		ReceiveAnswer: 60 * time.Second,
		Connection:    10 * time.Second,
		Modify:        60 * time.Second,
	}
}

type watchdog struct {
	s *Session
	t Timeouts

	mu      sync.Mutex
	state   *time.Timer
	modify  *time.Timer
	stopped bool
}

// Watch hangs a session up when it stays too long in a pre-flowing state
// and aborts renegotiation rounds that stall. Zero durations disable the
// matching timer.
func Watch(s *Session, t Timeouts) (stop func()) {
	w := &watchdog{s: s, t: t}
	s.OnStateChange(w.stateChanged)
	s.OnModify(w.modifyChanged)
	s.OnClose(func(CloseEvent) { w.stop() })
	return w.stop
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for _, t := range []*time.Timer{w.state, w.modify} {
		if t != nil {
			t.Stop()
		}
	}
}

func (w *watchdog) stateChanged(st State) {
	var (
		d      time.Duration
		reason string
	)
	initiator := w.s.InitialRole() == negotiation.Initiator
	switch {
	case st == negotiation.AwaitingApproval && !initiator:
		d, reason = w.t.Answer, "answer own call timer"
	case st == negotiation.Offered && initiator:
		d, reason = w.t.ReceiveAnswer, "receive answer timer"
	case st == negotiation.Answered:
		d, reason = w.t.Connection, "connection timer"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != nil {
		w.state.Stop()
		w.state = nil
	}
	if w.stopped || d <= 0 {
		return
	}
	w.state = time.AfterFunc(d, func() {
		w.s.log.WithField("timer", reason).Info("Session timed out")
		w.s.Hangup(CloseOptions{Reason: reason})
	})
}

func (w *watchdog) modifyChanged(ev ModifyEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.modify != nil {
		w.modify.Stop()
		w.modify = nil
	}
	if w.stopped || w.t.Modify <= 0 {
		return
	}
	switch ev.Phase {
	case ModifyRequested, ModifyAgreed:
		w.modify = time.AfterFunc(w.t.Modify, func() {
			if w.s.AbortModify() {
				w.s.log.Info("Renegotiation timed out")
			}
		})
	}
}
