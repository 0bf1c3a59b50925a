package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestResolveOnce(t *testing.T) {
	g := New[int]()
	assert.That(g.Pending())
	assert.That(g.Resolve(1))
	assert.That(!g.Resolve(2))
	assert.That(!g.Reject(errors.New("late")))
	v, err := g.Result()
	try.To(err)
	assert.Equal(v, 1)
	assert.That(g.Resolved())
}

func TestReject(t *testing.T) {
	g := New[string]()
	boom := errors.New("boom")
	assert.That(g.Reject(boom))
	_, err := g.Result()
	assert.Equal(err, boom)
	assert.That(!g.Resolved())

	g2 := New[string]()
	g2.Reject(nil)
	_, err = g2.Result()
	assert.Equal(err, ErrRejected)

	g3 := New[string]()
	g3.Reject(context.Canceled)
	_, err = g3.Result()
	assert.That(errors.Is(err, context.Canceled))
	assert.That(!g3.Resolved())
}

func TestOnSettle(t *testing.T) {
	g := New[int]()
	var seen []int
	g.OnSettle(func(v int, err error) { seen = append(seen, v) })
	g.OnSettle(func(v int, err error) { seen = append(seen, v*10) })
	g.Resolve(3)
	g.OnSettle(func(v int, err error) { seen = append(seen, v*100) })
	assert.Equal(len(seen), 3)
	assert.Equal(seen[0], 3)
	assert.Equal(seen[1], 30)
	assert.Equal(seen[2], 300)
}

func TestWait(t *testing.T) {
	g := New[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Resolve(7)
	}()
	v := try.To1(g.Wait(context.Background()))
	assert.Equal(v, 7)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := New[int]().Wait(ctx)
	assert.Equal(err, context.DeadlineExceeded)
}

func TestJoinOrderIndependent(t *testing.T) {
	for _, aFirst := range []bool{true, false} {
		a, b := New[struct{}](), New[string]()
		j := Join(a, b)
		fired := 0
		j.OnSettle(func(_ struct{}, err error) {
			assert.That(err == nil)
			fired++
		})
		if aFirst {
			a.Resolve(struct{}{})
			assert.That(j.Pending())
			b.Resolve("offer")
		} else {
			b.Resolve("offer")
			assert.That(j.Pending())
			a.Resolve(struct{}{})
		}
		assert.Equal(fired, 1)
	}
}

func TestJoinReject(t *testing.T) {
	a, b := New[struct{}](), New[string]()
	j := Join(a, b)
	denied := errors.New("denied")
	a.Reject(denied)
	_, err := j.Result()
	assert.Equal(err, denied)
	b.Resolve("offer")
	_, err = j.Result()
	assert.Equal(err, denied)
}

func TestJoinEmpty(t *testing.T) {
	assert.That(Join().Resolved())
}
