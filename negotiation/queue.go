package negotiation

import (
	"github.com/pion/ice/v2"
	"github.com/sirupsen/logrus"
)

// queueTarget is what a CandidateQueue drains into.
type queueTarget interface {
	// eligible reports whether the round's blocking gate resolved.
	eligible() bool
	transportReady() bool
	sendCandidate(Candidate)
	applyCandidate(Candidate)
}

// CandidateQueue holds candidates until the offer/answer exchange of the
// current round has progressed far enough to use them. Each direction is
// FIFO and each candidate leaves the queue exactly once.
type CandidateQueue struct {
	target    queueTarget
	relayOnly bool
	noRelay   bool
	log       *logrus.Entry

	outbound []Candidate
	inbound  []Candidate
	flushed  bool
}

func newCandidateQueue(target queueTarget, info *Info, log *logrus.Entry) *CandidateQueue {
	return &CandidateQueue{
		target:    target,
		relayOnly: info.RelayOnly,
		noRelay:   info.NoRelay,
		log:       log,
	}
}

func (q *CandidateQueue) open() bool {
	return q.flushed && q.target.eligible() && q.target.transportReady()
}

// EnqueueOrSendOutbound filters a locally gathered candidate and either
// signals it now or keeps it for the next flush.
func (q *CandidateQueue) EnqueueOrSendOutbound(c Candidate) {
	cand, err := parseCandidate(c)
	if err != nil {
		q.log.WithError(err).Warn("Dropping local candidate")
		return
	}
	relay := cand.Type() == ice.CandidateTypeRelay
	switch {
	case q.relayOnly && !relay:
		q.log.WithField("candidate", c.Candidate).Debug("Dropping non-relay candidate, relay only is on")
		return
	case q.noRelay && relay:
		q.log.WithField("candidate", c.Candidate).Debug("Dropping relay candidate, relay is disabled")
		return
	}
	if !q.open() {
		q.outbound = append(q.outbound, c)
		q.Flush()
		return
	}
	q.target.sendCandidate(c)
}

// EnqueueOrApplyInbound hands a remote candidate to the transport engine,
// or keeps it for the next flush.
func (q *CandidateQueue) EnqueueOrApplyInbound(c Candidate) {
	if err := ValidateCandidate(c); err != nil {
		q.log.WithError(err).Warn("Dropping remote candidate")
		return
	}
	if !q.open() {
		q.inbound = append(q.inbound, c)
		q.Flush()
		return
	}
	q.target.applyCandidate(c)
}

// Flush drains outbound then inbound. It does nothing until the blocking
// gate resolved and a transport is attached, and only once per round.
func (q *CandidateQueue) Flush() {
	if q.flushed || !q.target.eligible() || !q.target.transportReady() {
		return
	}
	q.flushed = true
	out, in := q.outbound, q.inbound
	q.outbound, q.inbound = nil, nil
	for _, c := range out {
		q.target.sendCandidate(c)
	}
	for _, c := range in {
		q.target.applyCandidate(c)
	}
}

// reset arms the queue for a new round. Candidates still queued stay.
func (q *CandidateQueue) reset() { q.flushed = false }

// drop discards everything still queued.
func (q *CandidateQueue) drop() {
	if n := len(q.outbound) + len(q.inbound); n > 0 {
		q.log.WithField("count", n).Debug("Dropping queued candidates")
	}
	q.outbound, q.inbound = nil, nil
}

func (q *CandidateQueue) Pending() (outbound, inbound int) {
	return len(q.outbound), len(q.inbound)
}
