package negotiation

import "github.com/shynome/rtcsession/report"

// Signaling delivers control messages to the remote party. Delivery is
// fire-and-forget: a nil error only means the message was handed off.
type Signaling interface {
	SignalOffer(OfferSignal) error
	SignalAnswer(AnswerSignal) error
	SignalConnected(ConnectedSignal) error
	SignalCandidate(CandidateSignal) error
	SignalModify(ModifySignal) error
	SignalTerminate(TerminateSignal) error
	SignalReport(ReportSignal) error
}

type OfferSignal struct {
	SDP       SDP
	SessionID string
}

type AnswerSignal struct {
	SDP          SDP
	SessionID    string
	ConnectionID string
}

// ConnectedSignal tells the remote endpoint which of its connections won
// the session.
type ConnectedSignal struct {
	SessionID    string
	ConnectionID string
}

type CandidateSignal struct {
	Candidate    Candidate
	SessionID    string
	ConnectionID string
}

type ModifyAction string

const (
	ModifyInitiate ModifyAction = "initiate"
	ModifyAccept   ModifyAction = "accept"
	ModifyReject   ModifyAction = "reject"
)

type ModifySignal struct {
	Action       ModifyAction
	SessionID    string
	ConnectionID string
	Change       *Change
}

type TerminateSignal struct {
	SessionID    string
	ConnectionID string
	Reason       string
}

type ReportSignal struct {
	Report       *report.Report
	ConnectionID string
}

// Transport is the local half of the peer-to-peer transport engine.
type Transport interface {
	CreateOffer() (SDP, error)
	CreateAnswer() (SDP, error)
	SetLocalDescription(SDP) error
	SetRemoteDescription(SDP) error
	AddICECandidate(Candidate) error
	// Connected reports whether the engine's connectivity is established.
	Connected() bool
	Close() error
}

// DataChannels is implemented by transports that can open and close data
// channels on an established connection.
type DataChannels interface {
	OpenDataChannel(label string) error
	CloseDataChannels() error
}

// Media is implemented by transports that can change the media they carry
// before the next offer.
type Media interface {
	SetMedia(caps Capabilities, dir Direction) error
}

// TransportEvents are invoked by the transport engine from its own
// goroutines. Nil fields are skipped.
type TransportEvents struct {
	OnCandidate         func(Candidate)
	OnStream            func(Stream)
	OnNegotiationNeeded func()
	OnConnectionState   func(connected bool)
}

type TransportFactory func(info Info, events TransportEvents) (Transport, error)
