// Package config holds the command line configuration of rtcsession.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/shynome/rtcsession"
	"github.com/shynome/rtcsession/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

const (
	SignalSSE  = "sse"
	SignalWAMP = "wamp"

	DefaultLogLevel     = "info"
	DefaultPionLogLevel = "warn"
	DefaultSignal       = SignalSSE
	DefaultSignalAddr   = "http://127.0.0.1:8030/"
	DefaultSignalRealm  = "rtcsession"
	DefaultListenAddr   = ":8030"
	DefaultICEAddress   = "stun:stun.l.google.com:19302"
	DefaultSendTimeout  = 10 * time.Second

	// ConfigName is the config file looked up in the data dir, with a
	// toml, yaml or json extension.
	ConfigName = "rtcsession"
)

type Config struct {
	// DataDir is where the config file is looked up.
	DataDir string `mapstructure:"datadir"`
	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`
	// PionLogLevel is the log level of the WebRTC stack.
	PionLogLevel string `mapstructure:"pion-log"`

	// EndpointID names this endpoint on the signaling server.
	EndpointID string `mapstructure:"id"`
	// Signal is the kind of signaling server, sse or wamp.
	Signal string `mapstructure:"signal"`
	// SignalAddr is the url of the signaling server. Basic auth credentials
	// may be given as user info.
	SignalAddr string `mapstructure:"signal-addr"`
	// SignalRealm is the WAMP realm.
	SignalRealm string `mapstructure:"signal-realm"`
	// ListenAddr is where serve listens.
	ListenAddr string `mapstructure:"listen"`
	// SendTimeout bounds the delivery of one signal.
	SendTimeout time.Duration `mapstructure:"send-timeout"`

	ICEAddress  string `mapstructure:"ice-addr"`
	ICEUsername string `mapstructure:"ice-username"`
	ICEPassword string `mapstructure:"ice-password"`
	RelayOnly   bool   `mapstructure:"relay-only"`
	NoRelay     bool   `mapstructure:"no-relay"`
	// UDPPort shares one UDP port between every connection when set.
	UDPPort uint16 `mapstructure:"udp-port"`

	Timeouts rtcsession.Timeouts `mapstructure:"timeouts"`

	logger *logrus.Logger
}

func NewDefaultConfig() *Config {
	hostname, _ := os.Hostname()
	return &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		PionLogLevel: DefaultPionLogLevel,
		EndpointID:   hostname,
		Signal:       DefaultSignal,
		SignalAddr:   DefaultSignalAddr,
		SignalRealm:  DefaultSignalRealm,
		ListenAddr:   DefaultListenAddr,
		SendTimeout:  DefaultSendTimeout,
		ICEAddress:   DefaultICEAddress,
		Timeouts:     rtcsession.DefaultTimeouts(),
	}
}

// Load reads the config file in DataDir, if there is one, over the values
// already bound to v, and unmarshals the result into c.
func (c *Config) Load(v *viper.Viper) error {
	if err := v.Unmarshal(c); err != nil {
		return err
	}
	v.SetConfigName(ConfigName)
	v.AddConfigPath(c.DataDir)

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		c.Logger().Debugf("No config file found in: %s", c.DataDir)
		return nil
	} else if err != nil {
		return err
	}
	c.Logger().Debugf("Using config file: %s", v.ConfigFileUsed())
	return v.Unmarshal(c)
}

// ICEServers returns the single ICE server of the configuration, or none.
func (c *Config) ICEServers() []webrtc.ICEServer {
	if c.ICEAddress == "" {
		return nil
	}
	server := webrtc.ICEServer{URLs: []string{c.ICEAddress}}
	if c.ICEUsername != "" {
		server.Username = c.ICEUsername
		server.Credential = c.ICEPassword
		server.CredentialType = webrtc.ICECredentialTypePassword
	}
	return []webrtc.ICEServer{server}
}

func (c *Config) Engine() engine.Config {
	return engine.Config{
		ICEServers:    c.ICEServers(),
		ListenPort:    c.UDPPort,
		LoggerFactory: PionLoggerFactory(c.logEntry("pion"), LogLevel(c.PionLogLevel)),
	}
}

// Client returns the client configuration of the endpoint, minus the
// signaling channel and transport.
func (c *Config) Client() rtcsession.Config {
	timeouts := c.Timeouts
	return rtcsession.Config{
		EndpointID:  c.EndpointID,
		Logger:      c.Logger(),
		RelayOnly:   c.RelayOnly,
		NoRelay:     c.NoRelay,
		Timeouts:    &timeouts,
		SendTimeout: c.SendTimeout,
	}
}

func (c *Config) logEntry(prefix string) *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", prefix)
}

// Logger returns a formatted logrus Entry, with prefix set to "rtcsession".
func (c *Config) Logger() *logrus.Entry {
	return c.logEntry("rtcsession")
}

// DefaultDataDir returns the default directory of the config file based on
// the underlying OS.
func DefaultDataDir() string {
	home := HomeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".RTCSession")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "RTCSession")
	}
	return filepath.Join(home, ".rtcsession")
}

func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
