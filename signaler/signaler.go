package signaler

import (
	"context"

	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/report"
)

type SDP = webrtc.SessionDescription

type Type string

const (
	TypeOffer     Type = "offer"
	TypeAnswer    Type = "answer"
	TypeCandidate Type = "candidate"
	TypeConnected Type = "connected"
	TypeModify    Type = "modify"
	TypeBye       Type = "bye"
	TypeReport    Type = "report"
)

// Message is the envelope every signal travels in. To names the remote
// endpoint; an empty To addresses the signaling server itself.
type Message struct {
	Type      Type   `json:"type"`
	SessionID string `json:"sessionId"`

	From           string `json:"from"`
	FromConnection string `json:"fromConnection,omitempty"`
	To             string `json:"to,omitempty"`
	ToConnection   string `json:"toConnection,omitempty"`

	SDP       *SDP                     `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Modify    *Modify                  `json:"modify,omitempty"`
	Report    *report.Report           `json:"report,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	// ConnectionID of a connected message names the connection that won.
	ConnectionID string `json:"connectionId,omitempty"`
}

type Modify struct {
	Action negotiation.ModifyAction `json:"action"`
	Change *negotiation.Change      `json:"change,omitempty"`
}

type Channel interface {
	Send(ctx context.Context, msg Message) error
	// Accept returns the inbound message stream. It is closed with the
	// channel.
	Accept() (ch <-chan Message, err error)

	Close() error
}

// Reports is implemented by channels that keep the session reports sent to
// the server.
type Reports interface {
	Reports() []*report.Report
}
