package negotiation

import (
	"github.com/shynome/rtcsession/gate"
	"github.com/shynome/rtcsession/report"
	"github.com/sirupsen/logrus"
)

// Round is the gate set of one offer/answer exchange.
type Round struct {
	Approved            *gate.Gate[struct{}]
	RemoteOfferReceived *gate.Gate[SDP]
	LocalOfferReady     *gate.Gate[SDP]
	LocalAnswerReady    *gate.Gate[SDP]
	RemoteAnswer        *gate.Gate[SDP]

	Modify bool

	armed     bool
	offering  bool
	accepting bool
}

func (r *Round) pending() []interface{ Reject(error) bool } {
	return []interface{ Reject(error) bool }{
		r.RemoteOfferReceived,
		r.LocalOfferReady,
		r.LocalAnswerReady,
		r.RemoteAnswer,
	}
}

type Hooks struct {
	// State runs after every change of the application visible state.
	State func(State)
	// Failed runs when a negotiation step failed and the session cannot
	// continue.
	Failed func(err error)
	// Abandoned runs when a round's approval or remote offer gate was
	// rejected before any exchange happened.
	Abandoned func(err error)
	// RoundComplete runs when the offer/answer exchange of a round resolved.
	RoundComplete func(modify bool)
}

type Config struct {
	Info      Info
	Signaling Signaling
	Report    *report.Report
	Logger    *logrus.Entry
	Hooks     Hooks
}

// Engine drives the offer/answer exchange of one session.
type Engine struct {
	info      Info
	signaling Signaling
	report    *report.Report
	log       *logrus.Entry
	hooks     Hooks

	machine   Machine
	transport Transport
	round     *Round
	previous  *Round
	queue     *CandidateQueue
	remote    Capabilities

	modify      *Renegotiation
	termination *Termination

	sentSDP       bool
	connectedSent bool
	terminateSent bool
	released      bool
}

func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	rep := cfg.Report
	if rep == nil {
		rep = report.New(cfg.Info.ID, cfg.Info.Role == Initiator)
		rep.LocalEndpoint = cfg.Info.LocalEndpointID
		rep.LocalConnection = cfg.Info.LocalConnectionID
		rep.RemoteEndpoint = cfg.Info.RemoteEndpointID
		rep.RemoteConnection = cfg.Info.RemoteConnectionID
		rep.RelayOnly = cfg.Info.RelayOnly
		rep.NoRelay = cfg.Info.NoRelay
	}
	e := &Engine{
		info:      cfg.Info,
		signaling: cfg.Signaling,
		report:    rep,
		log:       log,
		hooks:     cfg.Hooks,
	}
	e.queue = newCandidateQueue(e, &e.info, log)
	e.round = e.newRound(false)
	e.modify = &Renegotiation{e: e}
	e.termination = &Termination{e: e}
	return e
}

func (e *Engine) newRound(modify bool) *Round {
	r := &Round{
		Approved:            gate.New[struct{}](),
		RemoteOfferReceived: gate.New[SDP](),
		LocalOfferReady:     gate.New[SDP](),
		LocalAnswerReady:    gate.New[SDP](),
		RemoteAnswer:        gate.New[SDP](),
		Modify:              modify,
	}
	settled := func(err error) {
		if err != nil || r != e.round || e.released {
			return
		}
		e.queue.Flush()
		if e.eligible() {
			e.modify.roundComplete(r)
			if e.hooks.RoundComplete != nil {
				e.hooks.RoundComplete(r.Modify)
			}
		}
	}
	r.RemoteAnswer.Notify(settled)
	r.LocalAnswerReady.Notify(settled)
	return r
}

func (e *Engine) Info() Info                       { return e.info }
func (e *Engine) Role() Role                       { return e.info.Role }
func (e *Engine) State() State                     { return e.machine.State() }
func (e *Engine) Machine() *Machine                { return &e.machine }
func (e *Engine) Round() *Round                    { return e.round }
func (e *Engine) Report() *report.Report           { return e.report }
func (e *Engine) Transport() Transport             { return e.transport }
func (e *Engine) Queue() *CandidateQueue           { return e.queue }
func (e *Engine) Renegotiation() *Renegotiation    { return e.modify }
func (e *Engine) Termination() *Termination        { return e.termination }
func (e *Engine) RemoteCapabilities() Capabilities { return e.remote }
func (e *Engine) SentSDP() bool                    { return e.sentSDP }
func (e *Engine) TerminateSent() bool              { return e.terminateSent }
func (e *Engine) Released() bool                   { return e.released }

// IsActive reports whether the session is live and its transport connected.
func (e *Engine) IsActive() bool {
	return !e.released && e.transport != nil &&
		e.machine.State() != Ended && e.transport.Connected()
}

func (e *Engine) transition(to State) error {
	before := e.machine.State()
	if err := e.machine.Advance(to); err != nil {
		return err
	}
	if after := e.machine.State(); after != before && e.hooks.State != nil {
		e.hooks.State(after)
	}
	return nil
}

func (e *Engine) advance(to State) {
	if err := e.transition(to); err != nil {
		e.log.WithError(err).Warn("Skipping state change")
	}
}

func (e *Engine) fail(err error) {
	if e.hooks.Failed != nil {
		e.hooks.Failed(err)
	}
}

func (e *Engine) abandon(err error) {
	if e.hooks.Abandoned != nil {
		e.hooks.Abandoned(err)
	}
}

// Begin moves a created session to AwaitingApproval.
func (e *Engine) Begin() error { return e.transition(AwaitingApproval) }

// Attach hands the engine its transport and arms the current round.
func (e *Engine) Attach(t Transport) {
	if e.released {
		t.Close()
		return
	}
	e.transport = t
	e.queue.Flush()
	e.arm()
}

func (e *Engine) Approve() error {
	r := e.round
	if e.released {
		return ErrTransportUnavailable
	}
	if !r.Approved.Pending() {
		return ErrDuplicateSignal
	}
	if e.machine.Round() == Created {
		if err := e.transition(AwaitingApproval); err != nil {
			return err
		}
	}
	if err := e.transition(Approved); err != nil {
		return err
	}
	r.Approved.Resolve(struct{}{})
	return nil
}

func (e *Engine) Deny(reason string) error {
	r := e.round
	if e.released {
		return ErrTransportUnavailable
	}
	if reason == "" {
		return r.denied(ErrNotApproved)
	}
	return r.denied(&GateRejection{Gate: "approved", Reason: reason})
}

func (r *Round) denied(err error) error {
	if !r.Approved.Reject(err) {
		return ErrDuplicateSignal
	}
	return nil
}

// CaptureFailed records that local media could not be obtained.
func (e *Engine) CaptureFailed(cause error) error {
	if err := e.transition(MediaCaptureFailed); err != nil {
		return err
	}
	e.report.SetReason("media capture failed: " + cause.Error())
	return nil
}

// arm wires the role specific continuation of the current round.
func (e *Engine) arm() {
	r := e.round
	if r.armed || e.transport == nil || e.released {
		return
	}
	r.armed = true
	switch e.info.Role {
	case Initiator:
		r.Approved.Notify(func(err error) {
			if r != e.round || e.released {
				return
			}
			if err != nil {
				e.abandon(err)
				return
			}
			e.InitiateOffer()
		})
	case Responder:
		gate.Join(r.Approved, r.RemoteOfferReceived).Notify(func(err error) {
			if r != e.round || e.released {
				return
			}
			if err != nil {
				e.abandon(err)
				return
			}
			offer, _ := r.RemoteOfferReceived.Result()
			e.AcceptRemoteOffer(offer)
		})
	}
}

func (e *Engine) blocking() *gate.Gate[SDP] {
	if e.info.Role == Initiator {
		return e.round.RemoteAnswer
	}
	return e.round.LocalAnswerReady
}

func (e *Engine) eligible() bool       { return e.blocking().Resolved() }
func (e *Engine) transportReady() bool { return e.transport != nil && !e.released }

func (e *Engine) sendCandidate(c Candidate) {
	e.report.AddCandidateSent(c)
	err := e.signaling.SignalCandidate(CandidateSignal{
		Candidate:    c,
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
	})
	if err != nil {
		e.log.WithError(err).Warn("Couldn't send candidate")
	}
}

func (e *Engine) applyCandidate(c Candidate) {
	if err := e.transport.AddICECandidate(c); err != nil {
		e.log.WithError(err).Error("Couldn't add ICE candidate")
		return
	}
	e.report.AddCandidateReceived(c)
}

var _ queueTarget = (*Engine)(nil)

// InitiateOffer creates, applies and signals the local offer of the
// current round.
func (e *Engine) InitiateOffer() error {
	if e.released || e.transport == nil {
		return ErrTransportUnavailable
	}
	if e.info.Role != Initiator {
		return ErrWrongRole
	}
	r := e.round
	if !r.LocalOfferReady.Pending() || r.offering {
		return ErrDuplicateSignal
	}
	r.offering = true
	fail := func(op string, err error) error {
		nerr := &NegotiationError{Op: op, Err: err}
		e.report.SetReason(nerr.Error())
		r.LocalOfferReady.Reject(nerr)
		e.fail(nerr)
		return nerr
	}

	offer, err := e.transport.CreateOffer()
	if err != nil {
		return fail("create offer", err)
	}
	if err := e.transport.SetLocalDescription(offer); err != nil {
		return fail("set local description", err)
	}
	e.report.AddSDPSent(offer)
	if err := e.signaling.SignalOffer(OfferSignal{SDP: offer, SessionID: e.info.ID}); err != nil {
		return fail("signal offer", err)
	}
	e.sentSDP = true
	e.advance(Offered)
	r.LocalOfferReady.Resolve(offer)
	return nil
}

// ReceiveOffer records a remote offer for the current round. The answer is
// produced once the round is also approved.
func (e *Engine) ReceiveOffer(offer SDP) error {
	if e.released {
		return ErrTransportUnavailable
	}
	if e.info.Role == Initiator {
		_, err := e.AcceptRemoteOffer(offer).Result()
		return err
	}
	if !e.round.RemoteOfferReceived.Resolve(offer) {
		return ErrDuplicateSignal
	}
	e.describe(offer)
	return nil
}

// AcceptRemoteOffer applies a remote offer and answers it. The returned gate
// resolves once the answer went out and rejects on any failure.
func (e *Engine) AcceptRemoteOffer(offer SDP) *gate.Gate[SDP] {
	done := gate.New[SDP]()
	if e.released || e.transport == nil {
		done.Reject(ErrTransportUnavailable)
		return done
	}
	if e.info.Role == Initiator {
		e.log.Error("Got offer in an initiator session")
		e.report.SetReason(ErrOfferToInitiator.Error())
		e.sendTerminate(ErrOfferToInitiator.Error())
		done.Reject(ErrOfferToInitiator)
		e.fail(ErrOfferToInitiator)
		return done
	}
	r := e.round
	if !r.LocalAnswerReady.Pending() || r.accepting {
		done.Reject(ErrDuplicateSignal)
		return done
	}
	r.accepting = true
	r.RemoteOfferReceived.Resolve(offer)
	fail := func(op string, err error) *gate.Gate[SDP] {
		nerr := &NegotiationError{Op: op, Err: err}
		e.report.SetReason(nerr.Error())
		done.Reject(nerr)
		r.LocalAnswerReady.Reject(nerr)
		e.fail(nerr)
		return done
	}

	e.report.AddSDPReceived(offer)
	e.describe(offer)
	if err := e.transport.SetRemoteDescription(offer); err != nil {
		return fail("set remote description", err)
	}
	e.advance(Offered)
	answer, err := e.transport.CreateAnswer()
	if err != nil {
		return fail("create answer", err)
	}
	if err := e.transport.SetLocalDescription(answer); err != nil {
		return fail("set local description", err)
	}
	e.report.AddSDPSent(answer)
	err = e.signaling.SignalAnswer(AnswerSignal{
		SDP:          answer,
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
	})
	if err != nil {
		return fail("signal answer", err)
	}
	e.sentSDP = true
	e.advance(Answered)
	done.Resolve(offer)
	r.LocalAnswerReady.Resolve(answer)
	return done
}

// AcceptRemoteAnswer applies the first answer of the round. Later answers
// are ignored and reported as ErrDuplicateSignal.
func (e *Engine) AcceptRemoteAnswer(answer SDP, fromConnection string) error {
	if e.released || e.transport == nil {
		return ErrTransportUnavailable
	}
	if e.info.Role != Initiator {
		return ErrWrongRole
	}
	r := e.round
	if !r.RemoteAnswer.Pending() {
		e.log.Debug("Ignoring duplicate answer")
		return ErrDuplicateSignal
	}
	if !r.LocalOfferReady.Resolved() {
		return ErrAnswerBeforeOffer
	}
	e.report.AddSDPReceived(answer)
	e.describe(answer)
	if fromConnection != "" && e.info.RemoteConnectionID == "" {
		e.info.RemoteConnectionID = fromConnection
		e.report.RemoteConnection = fromConnection
	}
	e.signalConnected()
	if err := e.transport.SetRemoteDescription(answer); err != nil {
		nerr := &NegotiationError{Op: "set remote description", Err: err}
		e.report.SetReason(nerr.Error())
		r.RemoteAnswer.Reject(nerr)
		e.fail(nerr)
		return nerr
	}
	e.advance(Answered)
	r.RemoteAnswer.Resolve(answer)
	return nil
}

// ConnectedElsewhere reports whether a connected signal names a connection
// other than ours, meaning another device of this endpoint won the session.
func (e *Engine) ConnectedElsewhere(connectionID string) bool {
	return e.info.Role == Responder && connectionID != "" &&
		e.info.LocalConnectionID != "" && connectionID != e.info.LocalConnectionID
}

// StreamObserved moves the session to Flowing on the first remote stream.
// It reports whether the state changed.
func (e *Engine) StreamObserved() bool {
	if e.released || e.machine.State() == Flowing {
		return false
	}
	before := e.machine.State()
	if err := e.machine.Promote(Flowing); err != nil {
		e.log.WithError(err).Debug("Stream seen before answer")
		return false
	}
	if after := e.machine.State(); after != before && e.hooks.State != nil {
		e.hooks.State(after)
	}
	return true
}

// LocalCandidate takes a candidate gathered by the transport engine.
func (e *Engine) LocalCandidate(c Candidate) {
	if e.released {
		return
	}
	e.queue.EnqueueOrSendOutbound(c)
}

// RemoteCandidate takes a candidate signaled by the remote party.
func (e *Engine) RemoteCandidate(c Candidate) {
	if e.released {
		e.log.Debug("Ignoring remote candidate after hangup")
		return
	}
	e.queue.EnqueueOrApplyInbound(c)
}

func (e *Engine) signalConnected() {
	if e.connectedSent {
		return
	}
	e.connectedSent = true
	err := e.signaling.SignalConnected(ConnectedSignal{
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
	})
	if err != nil {
		e.log.WithError(err).Warn("Couldn't send connected signal")
	}
}

func (e *Engine) sendTerminate(reason string) {
	if e.terminateSent {
		return
	}
	e.terminateSent = true
	err := e.signaling.SignalTerminate(TerminateSignal{
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
		Reason:       reason,
	})
	if err != nil {
		e.log.WithError(err).Warn("Couldn't send bye")
	}
}

func (e *Engine) describe(desc SDP) {
	caps, err := Describe(desc)
	if err != nil {
		e.log.WithError(err).Debug("Couldn't parse remote SDP")
		return
	}
	e.remote = caps
}

// resetRound starts a renegotiation round with fresh gates.
func (e *Engine) resetRound() {
	e.previous = e.round
	e.round = e.newRound(true)
	e.queue.reset()
	if err := e.machine.Rewind(AwaitingApproval); err != nil {
		e.log.WithError(err).Warn("Couldn't start renegotiation round")
	}
}

// restoreRound brings back the round a rejected renegotiation replaced.
func (e *Engine) restoreRound() {
	if e.previous == nil {
		return
	}
	e.round, e.previous = e.previous, nil
	e.queue.reset()
	e.queue.Flush()
	e.machine.Unwind()
}

func (e *Engine) release() {
	if e.released {
		return
	}
	e.released = true
	e.queue.drop()
	if e.transport != nil {
		if err := e.transport.Close(); err != nil {
			e.log.WithError(err).Debug("Closing transport")
		}
		e.transport = nil
	}
}
