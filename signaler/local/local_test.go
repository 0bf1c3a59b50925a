package local

import (
	"context"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/report"
	"github.com/shynome/rtcsession/signaler"
)

func TestChannel(t *testing.T) {
	var hub = NewHub()
	s1, s2 := NewServer(), NewServer()
	hub.Register("s1", s1)
	hub.Register("s2", s2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := try.To1(s1.Accept())
	offer := signaler.SDP{Type: webrtc.SDPTypeOffer, SDP: "o"}
	for i := 0; i < 3; i++ {
		try.To(s2.Send(ctx, signaler.Message{Type: signaler.TypeOffer, From: "s2", To: "s1", SessionID: "x", SDP: &offer}))
	}
	for i := 0; i < 3; i++ {
		msg := <-ch
		assert.Equal(msg.Type, signaler.TypeOffer)
		assert.Equal(msg.From, "s2")
		assert.Equal(msg.SDP.Type, webrtc.SDPTypeOffer)
	}

	err := s1.Send(ctx, signaler.Message{Type: signaler.TypeBye, To: "s2"})
	assert.That(err != nil, "s2 never accepted")
	err = s1.Send(ctx, signaler.Message{Type: signaler.TypeBye, To: "nobody"})
	assert.That(err != nil)

	try.To(s1.Close())
	_, ok := <-ch
	assert.That(!ok)
	try.To(s1.Close())
	err = s2.Send(ctx, signaler.Message{Type: signaler.TypeBye, To: "s1"})
	assert.That(err != nil)
}

func TestReports(t *testing.T) {
	var hub = NewHub()
	s1 := NewServer()
	hub.Register("s1", s1)
	r := report.New("x", true)
	try.To(s1.Send(context.Background(), signaler.Message{Type: signaler.TypeReport, Report: r}))
	assert.Equal(len(hub.Reports()), 1)
	assert.Equal(hub.Reports()[0].SessionID, "x")
}
