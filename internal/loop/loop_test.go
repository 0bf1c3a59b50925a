package loop

import (
	"testing"

	"github.com/lainio/err2/assert"
)

func TestOrder(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Do(func() error { return nil })
	assert.Equal(len(got), 100)
	for i, v := range got {
		assert.Equal(v, i)
	}
	l.Stop()
	<-l.Done()
}

func TestPostFromTask(t *testing.T) {
	l := New()
	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})
	<-done
	l.Stop()
	<-l.Done()
}

func TestStop(t *testing.T) {
	l := New()
	ran := false
	l.Post(func() { l.Stop() })
	l.Post(func() { ran = true })
	<-l.Done()
	assert.That(ran, "tasks queued before stop still run")
	assert.That(!l.Post(func() {}))
	assert.Equal(l.Do(func() error { return nil }), ErrStopped)
}
