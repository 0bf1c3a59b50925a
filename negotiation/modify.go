package negotiation

import (
	"github.com/shynome/rtcsession/gate"
)

type ModifyState int

const (
	ModifyIdle ModifyState = iota
	ModifyNegotiating
)

func (s ModifyState) String() string {
	if s == ModifyNegotiating {
		return "negotiating"
	}
	return "idle"
}

type ModifyHooks struct {
	// Agreed runs once both sides agreed on a change, after roles were
	// settled and before a new offer is made.
	Agreed func(change Change)
	// Settled runs when a round started by a modify request finished.
	Settled func(change Change, err error)
}

// Renegotiation coordinates mid-session changes. Whoever asks for the
// change becomes the initiator of the round it starts.
type Renegotiation struct {
	e     *Engine
	hooks ModifyHooks

	state   ModifyState
	change  Change
	pending *gate.Gate[struct{}]
}

func (m *Renegotiation) SetHooks(h ModifyHooks) { m.hooks = h }
func (m *Renegotiation) State() ModifyState     { return m.state }

// StartModify asks the remote party for a change. The gate resolves when
// the remote party accepts and rejects when it declines.
func (m *Renegotiation) StartModify(change Change) (*gate.Gate[struct{}], error) {
	e := m.e
	switch {
	case e.released:
		return nil, ErrTransportUnavailable
	case m.state == ModifyNegotiating:
		return nil, ErrRenegotiationCollision
	case !e.eligible():
		return nil, ErrRenegotiationPrecall
	}
	err := e.signaling.SignalModify(ModifySignal{
		Action:       ModifyInitiate,
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
		Change:       &change,
	})
	if err != nil {
		return nil, &NegotiationError{Op: "signal modify", Err: err}
	}
	m.state, m.change = ModifyNegotiating, change
	m.pending = gate.New[struct{}]()
	if !change.Teardown() {
		e.resetRound()
	}
	return m.pending, nil
}

// ReceiveModify handles a modify signal from the remote party.
func (m *Renegotiation) ReceiveModify(sig ModifySignal) error {
	e := m.e
	if e.released {
		return ErrTransportUnavailable
	}
	switch sig.Action {
	case ModifyInitiate:
		return m.remoteInitiate(sig)
	case ModifyAccept:
		if m.state != ModifyNegotiating || m.pending == nil || !m.pending.Pending() {
			return ErrDuplicateSignal
		}
		e.info.Role = Initiator
		m.state = ModifyIdle
		m.agree(m.change)
		m.pending.Resolve(struct{}{})
		if m.change.Teardown() {
			m.settle(m.change, nil)
			return nil
		}
		e.arm()
		return nil
	case ModifyReject:
		if m.state != ModifyNegotiating || m.pending == nil || !m.pending.Pending() {
			return ErrDuplicateSignal
		}
		m.state = ModifyIdle
		if !m.change.Teardown() {
			e.restoreRound()
		}
		m.pending.Reject(ErrRenegotiationRejected)
		m.settle(m.change, ErrRenegotiationRejected)
		return nil
	}
	return ErrDuplicateSignal
}

func (m *Renegotiation) remoteInitiate(sig ModifySignal) error {
	e := m.e
	var refusal error
	switch {
	case m.state == ModifyNegotiating:
		refusal = ErrRenegotiationCollision
	case !e.eligible():
		refusal = ErrRenegotiationPrecall
	}
	if refusal != nil {
		e.log.WithError(refusal).Warn("Rejecting modify")
		m.reply(ModifyReject)
		return refusal
	}

	var change Change
	if sig.Change != nil {
		change = *sig.Change
	}
	e.info.Role = Responder
	if !change.Teardown() {
		e.resetRound()
		m.state, m.change = ModifyNegotiating, change
	}
	m.reply(ModifyAccept)
	m.agree(change)
	if change.Teardown() {
		m.settle(change, nil)
		return nil
	}
	e.arm()
	return nil
}

// agree records what the change does to the session before the new round
// starts.
func (m *Renegotiation) agree(change Change) {
	e := m.e
	if change.Capabilities != nil {
		e.info.Capabilities = *change.Capabilities
	}
	if change.Direction != "" {
		e.info.Direction = change.Direction
	}
	if change.DataChannel == ChannelAdd {
		e.info.Capabilities.DataChannel = true
	}
	if m.hooks.Agreed != nil {
		m.hooks.Agreed(change)
	}
}

func (m *Renegotiation) reply(action ModifyAction) {
	e := m.e
	err := e.signaling.SignalModify(ModifySignal{
		Action:       action,
		SessionID:    e.info.ID,
		ConnectionID: e.info.RemoteConnectionID,
	})
	if err != nil {
		e.log.WithError(err).Warn("Couldn't send modify reply")
	}
}

// Abort gives up on a pending local request without telling the remote
// party.
func (m *Renegotiation) Abort() bool {
	if m.state != ModifyNegotiating {
		return false
	}
	m.state = ModifyIdle
	if !m.change.Teardown() {
		m.e.restoreRound()
	}
	if m.pending != nil {
		m.pending.Reject(ErrRenegotiationAborted)
	}
	m.settle(m.change, ErrRenegotiationAborted)
	return true
}

func (m *Renegotiation) roundComplete(r *Round) {
	if !r.Modify {
		return
	}
	m.state = ModifyIdle
	m.e.previous = nil
	m.settle(m.change, nil)
}

func (m *Renegotiation) settle(change Change, err error) {
	if m.hooks.Settled != nil {
		m.hooks.Settled(change, err)
	}
}

// cancel returns to Idle without signaling anything.
func (m *Renegotiation) cancel() {
	m.state = ModifyIdle
	if m.pending != nil {
		m.pending.Reject(ErrTransportUnavailable)
	}
}
