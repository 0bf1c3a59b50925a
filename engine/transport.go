package engine

import (
	"sync"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/sirupsen/logrus"
)

// Transport is one peer connection.
type Transport struct {
	pc   *webrtc.PeerConnection
	ev   negotiation.TransportEvents
	log  *logrus.Entry
	init *webrtc.DataChannelInit

	mu  sync.Mutex
	dcs []*webrtc.DataChannel
}

var (
	_ negotiation.Transport    = (*Transport)(nil)
	_ negotiation.DataChannels = (*Transport)(nil)
	_ negotiation.Media        = (*Transport)(nil)
)

func (t *Transport) listen() {
	pc := t.pc
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || t.ev.OnCandidate == nil {
			return
		}
		t.ev.OnCandidate(c.ToJSON())
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.log.WithField("kind", track.Kind()).Debug("Remote track")
		t.stream(negotiation.Stream{
			Kind:  negotiation.StreamMedia,
			Label: track.ID(),
			Value: track,
		})
	})
	pc.OnDataChannel(t.watch)
	pc.OnNegotiationNeeded(func() {
		if t.ev.OnNegotiationNeeded != nil {
			t.ev.OnNegotiationNeeded()
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.WithField("state", state).Debug("Connection state")
		if t.ev.OnConnectionState != nil {
			t.ev.OnConnectionState(state == webrtc.PeerConnectionStateConnected)
		}
	})
}

func (t *Transport) stream(s negotiation.Stream) {
	if t.ev.OnStream != nil {
		t.ev.OnStream(s)
	}
}

// watch surfaces dc as a data stream once it opens.
func (t *Transport) watch(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dcs = append(t.dcs, dc)
	t.mu.Unlock()
	dc.OnOpen(func() {
		t.stream(negotiation.Stream{
			Kind:  negotiation.StreamData,
			Label: dc.Label(),
			Value: &Channel{dc: dc},
		})
	})
}

// setup prepares the first offer of an initiator.
func (t *Transport) setup(info negotiation.Info) (err error) {
	defer err2.Handle(&err)
	if info.Capabilities.DataChannel {
		try.To(t.OpenDataChannel(DataLabel))
	}
	try.To(t.SetMedia(info.Capabilities, info.Direction))
	return nil
}

func (t *Transport) CreateOffer() (negotiation.SDP, error) {
	return t.pc.CreateOffer(nil)
}

func (t *Transport) CreateAnswer() (negotiation.SDP, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *Transport) SetLocalDescription(desc negotiation.SDP) error {
	return t.pc.SetLocalDescription(desc)
}

func (t *Transport) SetRemoteDescription(desc negotiation.SDP) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *Transport) AddICECandidate(c negotiation.Candidate) error {
	return t.pc.AddICECandidate(c)
}

func (t *Transport) Connected() bool {
	return t.pc.ConnectionState() == webrtc.PeerConnectionStateConnected
}

func (t *Transport) OpenDataChannel(label string) (err error) {
	defer err2.Handle(&err)
	dc := try.To1(t.pc.CreateDataChannel(label, t.init))
	t.watch(dc)
	return nil
}

func (t *Transport) CloseDataChannels() (err error) {
	t.mu.Lock()
	dcs := t.dcs
	t.dcs = nil
	t.mu.Unlock()
	for _, dc := range dcs {
		if cerr := dc.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// SetMedia adds a transceiver for every requested kind the connection does
// not carry yet. The direction of existing transceivers stays as it is.
func (t *Transport) SetMedia(caps negotiation.Capabilities, dir negotiation.Direction) (err error) {
	defer err2.Handle(&err)
	have := map[webrtc.RTPCodecType]bool{}
	for _, tr := range t.pc.GetTransceivers() {
		have[tr.Kind()] = true
	}
	want := map[webrtc.RTPCodecType]bool{
		webrtc.RTPCodecTypeAudio: caps.Audio,
		webrtc.RTPCodecTypeVideo: caps.Video,
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if !want[kind] || have[kind] {
			continue
		}
		try.To1(t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: transceiverDirection(dir),
		}))
	}
	return nil
}

func (t *Transport) Close() error {
	return t.pc.Close()
}
