package engine

import (
	"github.com/pion/webrtc/v3"
)

// Channel is an opened pion data channel.
type Channel struct {
	dc *webrtc.DataChannel
}

func (c *Channel) Label() string { return c.dc.Label() }

func (c *Channel) Send(data []byte) error { return c.dc.Send(data) }

func (c *Channel) OnMessage(fn func(data []byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *Channel) OnClose(fn func()) { c.dc.OnClose(fn) }

func (c *Channel) Close() error { return c.dc.Close() }

// DataChannel returns the underlying pion channel.
func (c *Channel) DataChannel() *webrtc.DataChannel { return c.dc }
