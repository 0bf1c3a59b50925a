// Package capture shares local media sources between sessions. A source
// is opened once per set of constraints and released physically when the
// last session holding it lets go.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrReleased = errors.New("capture handle already released")

type Constraints struct {
	Audio  bool   `json:"audio" mapstructure:"audio"`
	Video  bool   `json:"video" mapstructure:"video"`
	Device string `json:"device,omitempty" mapstructure:"device"`
}

func (c Constraints) key() string {
	return fmt.Sprintf("audio=%t video=%t device=%s", c.Audio, c.Video, c.Device)
}

// Source is an opened capture source.
type Source interface {
	Close() error
}

type Opener func(Constraints) (Source, error)

type entry struct {
	refs   int
	source Source
}

type Registry struct {
	log *logrus.Entry

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		log:     log.WithField("prefix", "capture"),
		entries: map[string]*entry{},
	}
}

// Acquire returns a handle on the source matching c, opening it if no
// session holds one yet.
func (r *Registry) Acquire(c Constraints, open Opener) (*Handle, error) {
	key := c.key()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		source, err := open(c)
		if err != nil {
			return nil, err
		}
		e = &entry{source: source}
		r.entries[key] = e
		r.log.WithField("constraints", key).Debug("Opened capture source")
	}
	e.refs++
	return &Handle{reg: r, key: key, source: e.source}, nil
}

// Refs returns how many handles hold the source matching c.
func (r *Registry) Refs(c Constraints) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[c.key()]; ok {
		return e.refs
	}
	return 0
}

func (r *Registry) release(key string) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.entries, key)
	r.mu.Unlock()
	r.log.WithField("constraints", key).Debug("Releasing capture source")
	return e.source.Close()
}

type Handle struct {
	reg    *Registry
	key    string
	source Source

	once sync.Once
}

func (h *Handle) Source() Source { return h.source }

// Release drops this handle's reference. Only the first call counts.
func (h *Handle) Release() (err error) {
	err = ErrReleased
	h.once.Do(func() { err = h.reg.release(h.key) })
	return err
}
