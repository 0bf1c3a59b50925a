package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	c := NewDefaultConfig()
	assert.Equal(c.Signal, SignalSSE)
	assert.Equal(c.Timeouts.Answer, 10*time.Second)
	assert.Equal(c.Timeouts.ReceiveAnswer, 60*time.Second)
	assert.Equal(c.Timeouts.Connection, 10*time.Second)
	assert.Equal(c.Timeouts.Modify, 60*time.Second)
	assert.Equal(c.Logger().Logger.Level, logrus.InfoLevel)

	servers := c.ICEServers()
	assert.Equal(len(servers), 1)
	assert.Equal(servers[0].URLs[0], DefaultICEAddress)

	c.ICEUsername, c.ICEPassword = "u", "p"
	servers = c.ICEServers()
	assert.Equal(servers[0].CredentialType, webrtc.ICECredentialTypePassword)
	c.ICEAddress = ""
	assert.Equal(len(c.ICEServers()), 0)

	cc := c.Client()
	assert.Equal(cc.EndpointID, c.EndpointID)
	assert.Equal(cc.Timeouts.Answer, 10*time.Second)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(LogLevel("warn"), logrus.WarnLevel)
	assert.Equal(LogLevel("error"), logrus.ErrorLevel)
	assert.Equal(LogLevel("nonsense"), logrus.DebugLevel)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ConfigName+".toml")
	try.To(os.WriteFile(file, []byte(`
signal = "wamp"
relay-only = true

[timeouts]
answer = "3s"
`), 0o600))

	v := viper.New()
	v.Set("datadir", dir)
	v.Set("id", "alice")
	c := NewDefaultConfig()
	c.LogLevel = "error"
	try.To(c.Load(v))
	assert.Equal(c.EndpointID, "alice")
	assert.Equal(c.Signal, SignalWAMP)
	assert.That(c.RelayOnly)
	assert.Equal(c.Timeouts.Answer, 3*time.Second)
	assert.Equal(c.Timeouts.Modify, 60*time.Second)
}

func TestLoadWithoutFile(t *testing.T) {
	v := viper.New()
	v.Set("datadir", t.TempDir())
	v.Set("signal-addr", "http://example.com/")
	c := NewDefaultConfig()
	try.To(c.Load(v))
	assert.Equal(c.SignalAddr, "http://example.com/")
	assert.Equal(c.Signal, SignalSSE)
}

func TestPionLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.Out = &buf
	logger.Level = logrus.DebugLevel
	f := PionLoggerFactory(logrus.NewEntry(logger), logrus.WarnLevel)
	l := f.NewLogger("ice")
	l.Debug("hidden")
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	l.Error("shown too")
	out := buf.String()
	assert.That(!bytes.Contains(buf.Bytes(), []byte("hidden")), "%s", out)
	assert.That(bytes.Contains(buf.Bytes(), []byte("shown 2")), "%s", out)
	assert.That(bytes.Contains(buf.Bytes(), []byte("scope=ice")), "%s", out)
}
