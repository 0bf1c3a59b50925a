package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/config"
)

func TestNewServer(t *testing.T) {
	defer func(signal string) { _config.Signal = signal }(_config.Signal)

	_config.Signal = "pigeon"
	_, err := newServer("")
	assert.That(err != nil)
	_, err = newChannel(context.Background())
	assert.That(err != nil)

	_config.Signal = config.SignalSSE
	s := try.To1(newServer("u:p"))
	defer s.Close()
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp := try.To1(http.Get(srv.URL + "/?t=alice"))
	resp.Body.Close()
	assert.Equal(resp.StatusCode, http.StatusUnauthorized)
}

func TestEndpointFlags(t *testing.T) {
	cmd := NewDialCmd()
	for _, name := range []string{"id", "signal-addr", "relay-only", "timeouts.answer"} {
		assert.That(cmd.Flags().Lookup(name) != nil, "missing flag %s", name)
	}
	assert.That(NewServeCmd().Flags().Lookup("listen") != nil)
}
