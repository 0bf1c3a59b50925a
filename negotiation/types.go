// Package negotiation holds the session negotiation core: the state
// machine, the per-round gates, candidate queueing, renegotiation and
// teardown. Nothing here is safe for concurrent use; callers serialize
// every entry point onto one goroutine.
package negotiation

import (
	"github.com/pion/webrtc/v3"
)

type SDP = webrtc.SessionDescription

type Candidate = webrtc.ICECandidateInit

type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	}
	return "unknown"
}

func (r Role) Flip() Role {
	if r == Initiator {
		return Responder
	}
	return Initiator
}

type Direction string

const (
	SendRecv Direction = "sendrecv"
	SendOnly Direction = "sendonly"
	RecvOnly Direction = "recvonly"
)

type Capabilities struct {
	Audio       bool `json:"audio,omitempty"`
	Video       bool `json:"video,omitempty"`
	DataChannel bool `json:"dataChannel,omitempty"`
}

func (c Capabilities) Media() bool { return c.Audio || c.Video }

// Info is what a session knows about itself and its peer.
type Info struct {
	ID   string
	Role Role

	LocalEndpointID    string
	LocalConnectionID  string
	RemoteEndpointID   string
	RemoteConnectionID string

	// RelayOnly drops every local candidate that is not a relay candidate.
	RelayOnly bool
	// NoRelay drops every local relay candidate.
	NoRelay bool

	Direction    Direction
	Capabilities Capabilities
}

type StreamKind int

const (
	StreamMedia StreamKind = iota
	StreamData
)

func (k StreamKind) String() string {
	if k == StreamData {
		return "data"
	}
	return "media"
}

// Stream is a remote media track or an opened data channel as surfaced by
// the transport engine. Value holds the engine specific handle.
type Stream struct {
	Kind  StreamKind
	Label string
	Value any
}

type ChannelChange string

const (
	ChannelAdd    ChannelChange = "add"
	ChannelRemove ChannelChange = "remove"
)

// Change describes what a renegotiation round is for.
type Change struct {
	DataChannel  ChannelChange `json:"dataChannel,omitempty"`
	Label        string        `json:"label,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Direction    Direction     `json:"direction,omitempty"`
}

// Teardown reports whether the change only closes a data channel, which
// needs no new offer/answer exchange.
func (c Change) Teardown() bool { return c.DataChannel == ChannelRemove }
