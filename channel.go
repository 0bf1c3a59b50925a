package rtcsession

import (
	"context"
	"errors"
	"sync"

	"github.com/shynome/rtcsession/gate"
	"github.com/shynome/rtcsession/negotiation"
)

const DefaultLabel = "data"

var ErrChannelNotOpen = errors.New("data channel is not open yet")

// Channel is an opened data channel.
type Channel interface {
	Label() string
	Send(data []byte) error
	OnMessage(fn func(data []byte))
	OnClose(fn func())
	Close() error
}

// DataSession is a session that carries data channels only.
type DataSession struct {
	*Session

	ready *gate.Gate[Channel]

	mu       sync.Mutex
	channels map[string]Channel
}

func newDataSession(s *Session) *DataSession {
	d := &DataSession{
		Session:  s,
		ready:    gate.New[Channel](),
		channels: map[string]Channel{},
	}
	s.OnStream(func(st Stream) {
		if st.Kind != negotiation.StreamData {
			return
		}
		ch, ok := st.Value.(Channel)
		if !ok {
			return
		}
		d.mu.Lock()
		d.channels[ch.Label()] = ch
		d.mu.Unlock()
		d.ready.Resolve(ch)
	})
	s.OnClose(func(CloseEvent) {
		d.ready.Reject(negotiation.ErrTransportUnavailable)
	})
	s.data = d
	return d
}

// Channel waits for the first data channel to open.
func (d *DataSession) Channel(ctx context.Context) (Channel, error) {
	return d.ready.Wait(ctx)
}

// Labeled returns the open channel with the given label, or nil.
func (d *DataSession) Labeled(label string) Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[label]
}

// Send writes to the first data channel.
func (d *DataSession) Send(data []byte) error {
	if d.ready.Pending() {
		return ErrChannelNotOpen
	}
	ch, err := d.ready.Result()
	if err != nil {
		return err
	}
	return ch.Send(data)
}

// OpenChannel renegotiates the session to carry another data channel.
func (d *DataSession) OpenChannel(label string) (*gate.Gate[struct{}], error) {
	return d.Modify(Change{DataChannel: negotiation.ChannelAdd, Label: label})
}

// CloseChannels tears every data channel down without a new exchange.
func (d *DataSession) CloseChannels() (*gate.Gate[struct{}], error) {
	return d.Modify(Change{DataChannel: negotiation.ChannelRemove})
}
