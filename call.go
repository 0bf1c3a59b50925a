package rtcsession

import (
	"sync"

	"github.com/shynome/rtcsession/gate"
	"github.com/shynome/rtcsession/negotiation"
)

// Call is a session that carries media.
type Call struct {
	*Session

	mu      sync.Mutex
	streams []Stream
}

func newCall(s *Session) *Call {
	c := &Call{Session: s}
	s.OnStream(func(st Stream) {
		if st.Kind != negotiation.StreamMedia {
			return
		}
		c.mu.Lock()
		c.streams = append(c.streams, st)
		c.mu.Unlock()
	})
	s.call = c
	return c
}

// Answer accepts an incoming call, or tells an outgoing one that local
// media is ready.
func (c *Call) Answer() error { return c.Approve() }

func (c *Call) Streams() []Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Stream(nil), c.streams...)
}

// SetMedia renegotiates which kinds of media the call carries.
func (c *Call) SetMedia(caps Capabilities) (*gate.Gate[struct{}], error) {
	return c.Modify(Change{Capabilities: &caps})
}

func (c *Call) SetDirection(dir negotiation.Direction) (*gate.Gate[struct{}], error) {
	return c.Modify(Change{Direction: dir})
}

// AddDataChannel adds a data channel to the call. The channel shows up as
// a data stream on both sides.
func (c *Call) AddDataChannel(label string) (*gate.Gate[struct{}], error) {
	return c.Modify(Change{DataChannel: negotiation.ChannelAdd, Label: label})
}

func (c *Call) RemoveDataChannel() (*gate.Gate[struct{}], error) {
	return c.Modify(Change{DataChannel: negotiation.ChannelRemove})
}
