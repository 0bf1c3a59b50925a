// Package engine is the pion WebRTC transport engine behind sessions.
package engine

import (
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/ice/v2"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession/mux"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/sirupsen/logrus"
)

// DataLabel is the label of the data channel an initiator opens with its
// first offer.
const DataLabel = "data"

type Config struct {
	ICEServers []webrtc.ICEServer
	// ListenPort routes every peer connection through one UDP port. Zero
	// lets each connection pick its own ports.
	ListenPort uint16
	// Lossy opens data channels unordered and without retransmits, for
	// payloads that bring their own reliability.
	Lossy bool

	LoggerFactory logging.LoggerFactory
}

type Engine struct {
	cfg Config
	api *webrtc.API
	mux ice.UDPMux
	log *logrus.Entry
}

func New(cfg Config, log *logrus.Entry) (_ *Engine, err error) {
	defer err2.Handle(&err)
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		cfg: cfg,
		log: log.WithField("prefix", "engine"),
	}

	settingEngine := webrtc.SettingEngine{LoggerFactory: cfg.LoggerFactory}
	if cfg.ListenPort != 0 && mux.WithUDPMux != nil {
		e.mux = try.To1(mux.WithUDPMux(&settingEngine, cfg.ListenPort))
	}
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		e.closeMux()
		return nil, err
	}
	e.api = webrtc.NewAPI(
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithMediaEngine(media),
	)
	return e, nil
}

func (e *Engine) closeMux() {
	if e.mux == nil {
		return
	}
	if err := e.mux.Close(); err != nil {
		e.log.WithError(err).Debug("Closing UDP mux")
	}
}

// NewTransport matches negotiation.TransportFactory.
func (e *Engine) NewTransport(info negotiation.Info, events negotiation.TransportEvents) (_ negotiation.Transport, err error) {
	defer err2.Handle(&err)
	config := webrtc.Configuration{ICEServers: e.cfg.ICEServers}
	if info.RelayOnly {
		config.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	pc := try.To1(e.api.NewPeerConnection(config))
	t := &Transport{
		pc:  pc,
		ev:  events,
		log: e.log.WithField("session", info.ID),
	}
	if e.cfg.Lossy {
		t.init = &webrtc.DataChannelInit{
			Ordered:        refVal(false),
			MaxRetransmits: refVal(uint16(0)),
		}
	}
	t.listen()

	if info.Role == negotiation.Initiator {
		if err := t.setup(info); err != nil {
			pc.Close()
			return nil, err
		}
	}
	return t, nil
}

// Close releases the shared UDP port. Transports are closed by their
// sessions.
func (e *Engine) Close() error {
	e.closeMux()
	return nil
}
