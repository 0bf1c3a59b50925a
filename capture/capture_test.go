package capture

import (
	"errors"
	"testing"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

type fakeSource struct{ closed int }

func (f *fakeSource) Close() error {
	f.closed++
	return nil
}

func TestShared(t *testing.T) {
	reg := NewRegistry(nil)
	opened := 0
	src := &fakeSource{}
	open := func(Constraints) (Source, error) {
		opened++
		return src, nil
	}
	c := Constraints{Audio: true}
	h1 := try.To1(reg.Acquire(c, open))
	h2 := try.To1(reg.Acquire(c, open))
	assert.Equal(opened, 1)
	assert.Equal(reg.Refs(c), 2)
	assert.That(h1.Source() == h2.Source())

	try.To(h1.Release())
	assert.Equal(h1.Release(), ErrReleased)
	assert.Equal(src.closed, 0)
	assert.Equal(reg.Refs(c), 1)

	try.To(h2.Release())
	assert.Equal(src.closed, 1)
	assert.Equal(reg.Refs(c), 0)

	try.To1(reg.Acquire(c, open))
	assert.Equal(opened, 2)
}

func TestOpenFailure(t *testing.T) {
	reg := NewRegistry(nil)
	boom := errors.New("no device")
	_, err := reg.Acquire(Constraints{Video: true}, func(Constraints) (Source, error) { return nil, boom })
	assert.Equal(err, boom)
	assert.Equal(reg.Refs(Constraints{Video: true}), 0)
}
