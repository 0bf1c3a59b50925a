package engine

import (
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/negotiation"
)

func refVal[T any](v T) *T { return &v }

func transceiverDirection(d negotiation.Direction) webrtc.RTPTransceiverDirection {
	switch d {
	case negotiation.SendOnly:
		return webrtc.RTPTransceiverDirectionSendonly
	case negotiation.RecvOnly:
		return webrtc.RTPTransceiverDirectionRecvonly
	}
	return webrtc.RTPTransceiverDirectionSendrecv
}
