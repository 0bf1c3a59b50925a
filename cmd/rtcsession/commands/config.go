package commands

import (
	"context"
	"fmt"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession"
	"github.com/shynome/rtcsession/config"
	"github.com/shynome/rtcsession/engine"
	"github.com/shynome/rtcsession/signaler"
	"github.com/shynome/rtcsession/signaler/sse"
	"github.com/shynome/rtcsession/signaler/wamp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// AddCommonFlags adds the flags shared by every command talking to a
// signaling server.
func AddCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("signal", _config.Signal, "Signaling server kind: sse or wamp")
	cmd.Flags().StringP("signal-addr", "s", _config.SignalAddr, "URL of the signaling server")
	cmd.Flags().String("signal-realm", _config.SignalRealm, "WAMP realm")
}

// AddEndpointFlags adds the flags of commands running an endpoint.
func AddEndpointFlags(cmd *cobra.Command) {
	AddCommonFlags(cmd)
	cmd.Flags().String("id", _config.EndpointID, "Endpoint id on the signaling server")
	cmd.Flags().String("pion-log", _config.PionLogLevel, "Log level of the WebRTC stack")
	cmd.Flags().Duration("send-timeout", _config.SendTimeout, "Delivery timeout of one signal")

	// ICE
	cmd.Flags().String("ice-addr", _config.ICEAddress, "STUN or TURN server url")
	cmd.Flags().String("ice-username", _config.ICEUsername, "TURN username")
	cmd.Flags().String("ice-password", _config.ICEPassword, "TURN password")
	cmd.Flags().Bool("relay-only", _config.RelayOnly, "Only exchange relay candidates")
	cmd.Flags().Bool("no-relay", _config.NoRelay, "Never exchange relay candidates")
	cmd.Flags().Uint16("udp-port", _config.UDPPort, "Share one UDP port between every connection")

	// Watchdog
	cmd.Flags().Duration("timeouts.answer", _config.Timeouts.Answer, "Time an incoming session waits for approval")
	cmd.Flags().Duration("timeouts.receive-answer", _config.Timeouts.ReceiveAnswer, "Time an offer waits for its answer")
	cmd.Flags().Duration("timeouts.connection", _config.Timeouts.Connection, "Time from answer to the first stream")
	cmd.Flags().Duration("timeouts.modify", _config.Timeouts.Modify, "Time a renegotiation round may take")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":     _config.DataDir,
		"LogLevel":    _config.LogLevel,
		"EndpointID":  _config.EndpointID,
		"Signal":      _config.Signal,
		"SignalAddr":  _config.SignalAddr,
		"SignalRealm": _config.SignalRealm,
		"ListenAddr":  _config.ListenAddr,
		"ICEAddress":  _config.ICEAddress,
		"RelayOnly":   _config.RelayOnly,
		"NoRelay":     _config.NoRelay,
		"UDPPort":     _config.UDPPort,
		"Timeouts":    _config.Timeouts,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return _config.Load(viper.GetViper())
}

func newChannel(ctx context.Context) (signaler.Channel, error) {
	switch _config.Signal {
	case config.SignalSSE:
		return sse.NewChannel(_config.EndpointID, _config.SignalAddr, _config.Logger())
	case config.SignalWAMP:
		return wamp.Dial(ctx, _config.SignalAddr, _config.SignalRealm, _config.EndpointID, _config.Logger())
	}
	return nil, fmt.Errorf("unknown signaling server kind %q", _config.Signal)
}

// startClient opens an endpoint on the configured signaling server. The
// returned close func shuts the client and its engine down.
func startClient(ctx context.Context) (c *rtcsession.Client, closeFn func(), err error) {
	defer err2.Handle(&err)
	if _config.EndpointID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}

	eng := try.To1(engine.New(_config.Engine(), _config.Logger()))
	ch, err := newChannel(ctx)
	if err != nil {
		eng.Close()
		return nil, nil, err
	}

	cfg := _config.Client()
	cfg.Channel = ch
	cfg.Transport = eng.NewTransport
	c = rtcsession.NewClient(cfg)
	if err := c.Open(); err != nil {
		c.Close()
		eng.Close()
		return nil, nil, err
	}
	closeFn = func() {
		if err := c.Close(); err != nil {
			_config.Logger().WithError(err).Debug("Closing client")
		}
		eng.Close()
	}
	return c, closeFn, nil
}
