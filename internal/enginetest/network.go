package enginetest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/negotiation"
)

const tokenAttr = "a=fake-transport:"

// Network links fake transports whose offer/answer exchange completed.
type Network struct {
	mu         sync.Mutex
	seq        int
	transports map[string]*Transport

	// Candidates are gathered by every transport once its local
	// description is set.
	Candidates []negotiation.Candidate
}

func NewNetwork() *Network {
	return &Network{transports: map[string]*Transport{}}
}

// Factory matches negotiation.TransportFactory.
func (n *Network) Factory(info negotiation.Info, ev negotiation.TransportEvents) (negotiation.Transport, error) {
	return n.NewTransport(info, ev), nil
}

func (n *Network) NewTransport(info negotiation.Info, ev negotiation.TransportEvents) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	t := &Transport{
		ID:   fmt.Sprintf("t%d", n.seq),
		net:  n,
		info: info,
		ev:   ev,
	}
	if info.Role == negotiation.Initiator && info.Capabilities.DataChannel {
		t.labels = append(t.labels, "data")
	}
	n.transports[t.ID] = t
	return t
}

func (n *Network) Transports() []*Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Transport, 0, len(n.transports))
	for i := 1; i <= n.seq; i++ {
		if t, ok := n.transports[fmt.Sprintf("t%d", i)]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Transport is a fake transport engine. Every field is guarded by the
// network lock.
type Transport struct {
	ID   string
	net  *Network
	info negotiation.Info
	ev   negotiation.TransportEvents

	calls    []string
	failures map[string]error
	local    *negotiation.SDP
	remote   *negotiation.SDP
	applied  []negotiation.Candidate
	peer     *Transport
	linked   string
	media    bool
	labels   []string
	ends     []*Pipe

	connected bool
	closed    bool
}

var (
	_ negotiation.Transport    = (*Transport)(nil)
	_ negotiation.DataChannels = (*Transport)(nil)
	_ negotiation.Media        = (*Transport)(nil)
)

// Fail makes the named method return err from now on.
func (t *Transport) Fail(method string, err error) {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if t.failures == nil {
		t.failures = map[string]error{}
	}
	t.failures[method] = err
}

func (t *Transport) call(method string) error {
	t.calls = append(t.calls, method)
	if t.closed {
		return fmt.Errorf("%s: transport closed", method)
	}
	return t.failures[method]
}

func (t *Transport) Calls() []string {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *Transport) Applied() []negotiation.Candidate {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return append([]negotiation.Candidate(nil), t.applied...)
}

func (t *Transport) Closed() bool {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return t.closed
}

func (t *Transport) Remote() *negotiation.SDP {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return t.remote
}

func (t *Transport) description(typ webrtc.SDPType, kinds []string) negotiation.SDP {
	t.net.seq++
	var b strings.Builder
	fmt.Fprintf(&b, "v=0\r\no=- %d 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", t.net.seq)
	fmt.Fprintf(&b, "%s%s\r\n", tokenAttr, t.ID)
	for _, k := range kinds {
		switch k {
		case "audio":
			b.WriteString("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
		case "video":
			b.WriteString("m=video 9 UDP/TLS/RTP/SAVPF 96\r\n")
		case "application":
			b.WriteString("m=application 9 UDP/DTLS/SCTP webrtc-datachannel\r\n")
		}
	}
	return negotiation.SDP{Type: typ, SDP: b.String()}
}

func kindsOf(desc string) (kinds []string) {
	for _, line := range strings.Split(desc, "\r\n") {
		if strings.HasPrefix(line, "m=") {
			kinds = append(kinds, strings.Fields(line[2:])[0])
		}
	}
	return kinds
}

func tokenOf(desc string) string {
	for _, line := range strings.Split(desc, "\r\n") {
		if strings.HasPrefix(line, tokenAttr) {
			return strings.TrimPrefix(line, tokenAttr)
		}
	}
	return ""
}

func (t *Transport) CreateOffer() (negotiation.SDP, error) {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if err := t.call("CreateOffer"); err != nil {
		return negotiation.SDP{}, err
	}
	var kinds []string
	caps := t.info.Capabilities
	if caps.Audio || t.remoteHas("audio") {
		kinds = append(kinds, "audio")
	}
	if caps.Video || t.remoteHas("video") {
		kinds = append(kinds, "video")
	}
	if caps.DataChannel || len(t.labels) > 0 || len(t.ends) > 0 {
		kinds = append(kinds, "application")
	}
	return t.description(webrtc.SDPTypeOffer, kinds), nil
}

func (t *Transport) remoteHas(kind string) bool {
	if t.remote == nil {
		return false
	}
	for _, k := range kindsOf(t.remote.SDP) {
		if k == kind {
			return true
		}
	}
	return false
}

func (t *Transport) CreateAnswer() (negotiation.SDP, error) {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if err := t.call("CreateAnswer"); err != nil {
		return negotiation.SDP{}, err
	}
	if t.remote == nil {
		return negotiation.SDP{}, fmt.Errorf("CreateAnswer: no remote offer")
	}
	return t.description(webrtc.SDPTypeAnswer, kindsOf(t.remote.SDP)), nil
}

func (t *Transport) SetLocalDescription(desc negotiation.SDP) error {
	t.net.mu.Lock()
	if err := t.call("SetLocalDescription"); err != nil {
		t.net.mu.Unlock()
		return err
	}
	t.local = &desc
	emit := t.link()
	gathered := append([]negotiation.Candidate(nil), t.net.Candidates...)
	t.net.mu.Unlock()

	if t.ev.OnCandidate != nil {
		for _, c := range gathered {
			t.ev.OnCandidate(c)
		}
	}
	emit()
	return nil
}

func (t *Transport) SetRemoteDescription(desc negotiation.SDP) error {
	t.net.mu.Lock()
	if err := t.call("SetRemoteDescription"); err != nil {
		t.net.mu.Unlock()
		return err
	}
	if tokenOf(desc.SDP) == "" {
		t.net.mu.Unlock()
		return fmt.Errorf("SetRemoteDescription: not a fake description")
	}
	t.remote = &desc
	t.peer = t.net.transports[tokenOf(desc.SDP)]
	emit := t.link()
	t.net.mu.Unlock()
	emit()
	return nil
}

// link connects t with its peer once both sides hold each other's
// descriptions. It returns the events to emit after unlocking.
func (t *Transport) link() (emit func()) {
	emit = func() {}
	p := t.peer
	if p == nil || p.peer != t || t.local == nil || t.remote == nil || p.local == nil || p.remote == nil {
		return
	}
	if t.remote.SDP != p.local.SDP || p.remote.SDP != t.local.SDP || t.local.Type == p.local.Type {
		return
	}
	exchange := t.local.SDP + p.local.SDP
	if t.linked == exchange {
		return
	}
	t.linked, p.linked = exchange, exchange

	var events []func()
	if !t.connected {
		t.connected, p.connected = true, true
		events = append(events, func() {
			if t.ev.OnConnectionState != nil {
				t.ev.OnConnectionState(true)
			}
			if p.ev.OnConnectionState != nil {
				p.ev.OnConnectionState(true)
			}
		})
	}
	kinds := kindsOf(t.local.SDP)
	for _, k := range kinds {
		if (k == "audio" || k == "video") && !t.media {
			t.media, p.media = true, true
			events = append(events, func() {
				t.stream(negotiation.Stream{Kind: negotiation.StreamMedia, Label: "media"})
				p.stream(negotiation.Stream{Kind: negotiation.StreamMedia, Label: "media"})
			})
		}
	}
	labels := append(t.labels, p.labels...)
	t.labels, p.labels = nil, nil
	for _, label := range labels {
		a, b := newPipes(label)
		t.ends, p.ends = append(t.ends, a), append(p.ends, b)
		events = append(events, func() {
			t.stream(negotiation.Stream{Kind: negotiation.StreamData, Label: a.label, Value: a})
			p.stream(negotiation.Stream{Kind: negotiation.StreamData, Label: b.label, Value: b})
		})
	}
	return func() {
		for _, ev := range events {
			ev()
		}
	}
}

func (t *Transport) stream(s negotiation.Stream) {
	if t.ev.OnStream != nil {
		t.ev.OnStream(s)
	}
}

func (t *Transport) AddICECandidate(c negotiation.Candidate) error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if err := t.call("AddICECandidate"); err != nil {
		return err
	}
	t.applied = append(t.applied, c)
	return nil
}

func (t *Transport) Connected() bool {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return t.connected && !t.closed
}

func (t *Transport) OpenDataChannel(label string) error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if err := t.call("OpenDataChannel"); err != nil {
		return err
	}
	t.labels = append(t.labels, label)
	return nil
}

func (t *Transport) SetMedia(caps negotiation.Capabilities, dir negotiation.Direction) error {
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if err := t.call("SetMedia"); err != nil {
		return err
	}
	t.info.Capabilities, t.info.Direction = caps, dir
	return nil
}

func (t *Transport) CloseDataChannels() error {
	t.net.mu.Lock()
	if err := t.call("CloseDataChannels"); err != nil {
		t.net.mu.Unlock()
		return err
	}
	ends := t.ends
	t.ends = nil
	t.net.mu.Unlock()
	for _, end := range ends {
		end.Close()
	}
	return nil
}

func (t *Transport) Close() error {
	t.net.mu.Lock()
	if t.closed {
		t.net.mu.Unlock()
		return nil
	}
	t.calls = append(t.calls, "Close")
	t.closed = true
	ends := t.ends
	t.ends = nil
	t.net.mu.Unlock()
	for _, end := range ends {
		end.Close()
	}
	return nil
}
