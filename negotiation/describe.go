package negotiation

import (
	"github.com/pion/sdp/v3"
)

// Describe reports which kinds of media an SDP blob negotiates.
func Describe(desc SDP) (caps Capabilities, err error) {
	var parsed sdp.SessionDescription
	if err = parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return caps, err
	}
	for _, m := range parsed.MediaDescriptions {
		switch m.MediaName.Media {
		case "audio":
			caps.Audio = true
		case "video":
			caps.Video = true
		case "application":
			caps.DataChannel = true
		}
	}
	return caps, nil
}
