// Package mux shares one UDP port between every peer connection of an
// engine.
package mux

import (
	"github.com/pion/ice/v2"
	"github.com/pion/webrtc/v3"
)

// WithUDPMux listens on port and routes the ICE traffic of engine through
// it. It is nil on platforms without UDP sockets.
var WithUDPMux func(engine *webrtc.SettingEngine, port uint16) (ice.UDPMux, error)
