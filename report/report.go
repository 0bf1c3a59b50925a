// Package report keeps the diagnostic record of one session.
package report

import (
	"time"

	"github.com/pion/webrtc/v3"
)

// Report is append-only while the session lives and frozen by Stop.
// It is not safe for concurrent use before Stop.
type Report struct {
	SessionID string `json:"sessionId"`
	Initiator bool   `json:"initiator"`

	LocalEndpoint    string `json:"localEndpoint,omitempty"`
	LocalConnection  string `json:"localConnection,omitempty"`
	RemoteEndpoint   string `json:"remoteEndpoint,omitempty"`
	RemoteConnection string `json:"remoteConnection,omitempty"`

	RelayOnly bool `json:"relayOnly,omitempty"`
	NoRelay   bool `json:"noRelay,omitempty"`

	StartedAt     time.Time `json:"startedAt"`
	StoppedAt     time.Time `json:"stoppedAt,omitempty"`
	StoppedReason string    `json:"stoppedReason,omitempty"`

	SDPsSent           []webrtc.SessionDescription `json:"sdpsSent"`
	SDPsReceived       []webrtc.SessionDescription `json:"sdpsReceived"`
	CandidatesSent     []webrtc.ICECandidateInit   `json:"candidatesSent"`
	CandidatesReceived []webrtc.ICECandidateInit   `json:"candidatesReceived"`
	LastSDP            *webrtc.SessionDescription  `json:"lastSdp,omitempty"`
}

func New(sessionID string, initiator bool) *Report {
	return &Report{
		SessionID: sessionID,
		Initiator: initiator,
		StartedAt: time.Now(),
	}
}

func (r *Report) Stopped() bool { return !r.StoppedAt.IsZero() }

func (r *Report) AddSDPSent(sdp webrtc.SessionDescription) {
	if r.Stopped() {
		return
	}
	r.SDPsSent = append(r.SDPsSent, sdp)
}

func (r *Report) AddSDPReceived(sdp webrtc.SessionDescription) {
	if r.Stopped() {
		return
	}
	r.SDPsReceived = append(r.SDPsReceived, sdp)
	r.LastSDP = &sdp
}

func (r *Report) AddCandidateSent(c webrtc.ICECandidateInit) {
	if r.Stopped() {
		return
	}
	r.CandidatesSent = append(r.CandidatesSent, c)
}

func (r *Report) AddCandidateReceived(c webrtc.ICECandidateInit) {
	if r.Stopped() {
		return
	}
	r.CandidatesReceived = append(r.CandidatesReceived, c)
}

// SetReason records why the session is ending. The first reason wins.
func (r *Report) SetReason(reason string) {
	if r.Stopped() || r.StoppedReason != "" || reason == "" {
		return
	}
	r.StoppedReason = reason
}

// Stop stamps the stop time and freezes the report. Later calls do nothing.
func (r *Report) Stop(reason string) {
	if r.Stopped() {
		return
	}
	if reason == "" {
		reason = "none"
	}
	r.SetReason(reason)
	r.StoppedAt = time.Now()
}

func (r *Report) Duration() time.Duration {
	if !r.Stopped() {
		return time.Since(r.StartedAt)
	}
	return r.StoppedAt.Sub(r.StartedAt)
}
