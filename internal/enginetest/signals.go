// Package enginetest provides in-memory stand-ins for the transport engine
// and the signaling channel.
package enginetest

import (
	"sync"

	"github.com/shynome/rtcsession/negotiation"
)

// Signals records every signal it is asked to send.
type Signals struct {
	mu         sync.Mutex
	fail       map[string]error
	Offers     []negotiation.OfferSignal
	Answers    []negotiation.AnswerSignal
	Connected  []negotiation.ConnectedSignal
	Candidates []negotiation.CandidateSignal
	Modifies   []negotiation.ModifySignal
	Terminates []negotiation.TerminateSignal
	Reports    []negotiation.ReportSignal
}

var _ negotiation.Signaling = (*Signals)(nil)

// Fail makes the named method return err from now on.
func (s *Signals) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail == nil {
		s.fail = map[string]error{}
	}
	s.fail[method] = err
}

func (s *Signals) record(method string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[method]; err != nil {
		return err
	}
	fn()
	return nil
}

func (s *Signals) SignalOffer(sig negotiation.OfferSignal) error {
	return s.record("SignalOffer", func() { s.Offers = append(s.Offers, sig) })
}

func (s *Signals) SignalAnswer(sig negotiation.AnswerSignal) error {
	return s.record("SignalAnswer", func() { s.Answers = append(s.Answers, sig) })
}

func (s *Signals) SignalConnected(sig negotiation.ConnectedSignal) error {
	return s.record("SignalConnected", func() { s.Connected = append(s.Connected, sig) })
}

func (s *Signals) SignalCandidate(sig negotiation.CandidateSignal) error {
	return s.record("SignalCandidate", func() { s.Candidates = append(s.Candidates, sig) })
}

func (s *Signals) SignalModify(sig negotiation.ModifySignal) error {
	return s.record("SignalModify", func() { s.Modifies = append(s.Modifies, sig) })
}

func (s *Signals) SignalTerminate(sig negotiation.TerminateSignal) error {
	return s.record("SignalTerminate", func() { s.Terminates = append(s.Terminates, sig) })
}

func (s *Signals) SignalReport(sig negotiation.ReportSignal) error {
	return s.record("SignalReport", func() { s.Reports = append(s.Reports, sig) })
}

// Count returns how many signals of each kind were recorded.
func (s *Signals) Count() (offers, answers, candidates, terminates, reports int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Offers), len(s.Answers), len(s.Candidates), len(s.Terminates), len(s.Reports)
}
