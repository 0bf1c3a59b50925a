package enginetest

import (
	"io"
	"sync"

	"github.com/shynome/rtcsession/internal/loop"
)

// Pipe is one end of an in-memory data channel. Messages are delivered in
// order on a goroutine owned by the receiving end.
type Pipe struct {
	label string
	peer  *Pipe
	loop  *loop.Loop

	mu        sync.Mutex
	onMessage func([]byte)
	onClose   func()
	backlog   [][]byte
	closed    bool
}

func newPipes(label string) (a, b *Pipe) {
	a = &Pipe{label: label, loop: loop.New()}
	b = &Pipe{label: label, loop: loop.New()}
	a.peer, b.peer = b, a
	return a, b
}

func (p *Pipe) Label() string { return p.label }

func (p *Pipe) Send(data []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	msg := make([]byte, len(data))
	copy(msg, data)
	p.peer.loop.Post(func() {
		p.peer.mu.Lock()
		p.peer.backlog = append(p.peer.backlog, msg)
		p.peer.mu.Unlock()
		p.peer.drain()
	})
	return nil
}

func (p *Pipe) drain() {
	p.mu.Lock()
	fn := p.onMessage
	if fn == nil {
		p.mu.Unlock()
		return
	}
	items := p.backlog
	p.backlog = nil
	p.mu.Unlock()
	for _, msg := range items {
		fn(msg)
	}
}

func (p *Pipe) OnMessage(fn func([]byte)) {
	p.mu.Lock()
	p.onMessage = fn
	p.mu.Unlock()
	p.loop.Post(p.drain)
}

func (p *Pipe) OnClose(fn func()) {
	p.mu.Lock()
	p.onClose = fn
	p.mu.Unlock()
}

func (p *Pipe) shut() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	fn := p.onClose
	p.mu.Unlock()
	if fn != nil {
		p.loop.Post(fn)
	}
	p.loop.Stop()
}

// Close closes both ends.
func (p *Pipe) Close() error {
	p.shut()
	p.peer.shut()
	return nil
}
