package enginetest

import (
	"fmt"

	"github.com/shynome/rtcsession/negotiation"
)

func mline(c negotiation.Candidate) negotiation.Candidate {
	var idx uint16
	mid := "0"
	c.SDPMLineIndex, c.SDPMid = &idx, &mid
	return c
}

// Host returns a host candidate on 192.168.1.n.
func Host(n int) negotiation.Candidate {
	return mline(negotiation.Candidate{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 192.168.1.%d %d typ host", n, n, 50000+n),
	})
}

// Relay returns a relay candidate on 203.0.113.n.
func Relay(n int) negotiation.Candidate {
	return mline(negotiation.Candidate{
		Candidate: fmt.Sprintf("candidate:%d 1 udp 16777215 203.0.113.%d 3478 typ relay raddr 0.0.0.0 rport 0", 100+n, n),
	})
}

// Malformed returns a candidate without an m-line index or mid.
func Malformed() negotiation.Candidate {
	return negotiation.Candidate{Candidate: "candidate:9 1 udp 2130706431 192.168.1.9 50009 typ host"}
}
