package report

import (
	"encoding/json"
	"testing"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
)

func TestFrozenAfterStop(t *testing.T) {
	r := New("s1", true)
	r.AddSDPSent(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"})
	r.SetReason("set remote description failed")
	r.Stop("hangup method called")
	assert.Equal(r.StoppedReason, "set remote description failed")
	stoppedAt := r.StoppedAt

	r.AddSDPSent(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "late"})
	r.AddCandidateReceived(webrtc.ICECandidateInit{Candidate: "late"})
	r.Stop("again")
	assert.Equal(len(r.SDPsSent), 1)
	assert.Equal(len(r.CandidatesReceived), 0)
	assert.Equal(r.StoppedAt, stoppedAt)
}

func TestLastSDP(t *testing.T) {
	r := New("s1", false)
	r.AddSDPReceived(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "first"})
	r.AddSDPReceived(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "second"})
	assert.Equal(r.LastSDP.SDP, "second")
	r.Stop("")
	assert.Equal(r.StoppedReason, "none")

	var decoded Report
	try.To(json.Unmarshal(try.To1(json.Marshal(r)), &decoded))
	assert.Equal(decoded.SessionID, "s1")
	assert.Equal(len(decoded.SDPsReceived), 2)
}
