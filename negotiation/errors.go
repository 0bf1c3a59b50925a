package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalTransition      = errors.New("illegal state transition")
	ErrTransportUnavailable   = errors.New("transport unavailable")
	ErrDuplicateSignal        = errors.New("duplicate signal ignored")
	ErrWrongRole              = errors.New("operation not valid for this role")
	ErrOfferToInitiator       = errors.New("got offer in an initiator session")
	ErrAnswerBeforeOffer      = errors.New("got answer before an offer was sent")
	ErrMalformedCandidate     = errors.New("malformed candidate")
	ErrRenegotiationRejected  = errors.New("remote party cannot negotiate")
	ErrRenegotiationCollision = errors.New("got modify in a negotiating state")
	ErrRenegotiationPrecall   = errors.New("got modify in a precall state")
	ErrRenegotiationAborted   = errors.New("renegotiation aborted")
)

var (
	ErrClosedBeforeApproval = &GateRejection{Gate: "approved", Reason: "session closed before approval"}
	ErrNotApproved          = &GateRejection{Gate: "approved", Reason: "session was not approved"}
)

// NegotiationError wraps a transport engine failure with the step that
// produced it.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation: %s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

// GateRejection is the error a gate is rejected with when the session
// declines to continue rather than fails.
type GateRejection struct {
	Gate   string
	Reason string
}

func (e *GateRejection) Error() string {
	return fmt.Sprintf("%s gate rejected: %s", e.Gate, e.Reason)
}
