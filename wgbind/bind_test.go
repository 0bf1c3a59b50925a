package wgbind

import (
	"net"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession"
	"github.com/shynome/rtcsession/internal/enginetest"
	"github.com/shynome/rtcsession/internal/testlog"
	"github.com/shynome/rtcsession/signaler/local"
	"golang.zx2c4.com/wireguard/conn"
)

func newBinds(t *testing.T) (a, b *Bind) {
	hub := local.NewHub()
	network := enginetest.NewNetwork()
	newBind := func(id string) *Bind {
		server := local.NewServer()
		hub.Register(id, server)
		c := rtcsession.NewClient(rtcsession.Config{
			EndpointID: id,
			Channel:    server,
			Transport:  network.Factory,
			Logger:     testlog.Entry(t, id),
		})
		try.To(c.Open())
		t.Cleanup(func() { c.Close() })
		bind := NewBind(c, testlog.Entry(t, id))
		t.Cleanup(func() { bind.Close() })
		return bind
	}
	return newBind("alice"), newBind("bob")
}

type packet struct {
	data string
	ep   conn.Endpoint
}

func receive(t *testing.T, fn conn.ReceiveFunc) <-chan packet {
	ch := make(chan packet, 8)
	go func() {
		for {
			packets := [][]byte{make([]byte, 1500)}
			sizes, eps := make([]int, 1), make([]conn.Endpoint, 1)
			n, err := fn(packets, sizes, eps)
			if err != nil {
				close(ch)
				return
			}
			for i := 0; i < n; i++ {
				ch <- packet{data: string(packets[i][:sizes[i]]), ep: eps[i]}
			}
		}
	}()
	return ch
}

func next(t *testing.T, ch <-chan packet) packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no packet")
	}
	return packet{}
}

func TestBind(t *testing.T) {
	a, b := newBinds(t)
	fnsA, _ := try.To2(a.Open(0))
	fnsB, port := try.To2(b.Open(51820))
	assert.Equal(port, uint16(51820))
	_, _, err := b.Open(0)
	assert.Equal(err, conn.ErrBindAlreadyOpen)
	inA, inB := receive(t, fnsA[0]), receive(t, fnsB[0])

	bob := try.To1(a.ParseEndpoint("bob"))
	assert.Equal(bob.DstToString(), "bob")
	try.To(a.Send([][]byte{[]byte("handshake")}, bob))

	p := next(t, inB)
	assert.Equal(p.data, "handshake")
	assert.Equal(p.ep.DstToString(), "alice")

	try.To(b.Send([][]byte{[]byte("response")}, p.ep))
	p = next(t, inA)
	assert.Equal(p.data, "response")
	assert.Equal(p.ep.DstToString(), "bob")
	assert.Equal(len(a.client.Sessions()), 1)

	try.To(a.Close())
	_, ok := <-inA
	assert.That(!ok)
	assert.Equal(a.Send([][]byte{[]byte("late")}, bob), net.ErrClosed)
	assert.Equal(len(a.client.Sessions()), 0)
	deadline := time.Now().Add(5 * time.Second)
	for b.endpoint("alice").channel() != nil {
		if time.Now().After(deadline) {
			t.Fatal("remote session still open")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fnsA = try.To1(reopen(a))
	inA = receive(t, fnsA[0])
	try.To(b.Send([][]byte{[]byte("again")}, p.ep))
	assert.Equal(next(t, inA).data, "again")
}

func reopen(b *Bind) ([]conn.ReceiveFunc, error) {
	fns, _, err := b.Open(0)
	return fns, err
}

func TestParseEndpoint(t *testing.T) {
	a, _ := newBinds(t)
	try.To2(a.Open(0))
	_, err := a.ParseEndpoint("")
	assert.That(err != nil)
	ep1 := try.To1(a.ParseEndpoint("bob"))
	ep2 := try.To1(a.ParseEndpoint("bob"))
	assert.That(ep1 == ep2)
	assert.Equal(string(ep1.DstToBytes()), "bob")
	assert.Equal(a.Send(nil, nil), ErrEndpointImpl)
}
