package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/shynome/rtcsession/config"
	"github.com/shynome/rtcsession/signaler/sse"
	"github.com/shynome/rtcsession/signaler/wamp"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the command that runs a signaling server
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run a signaling server",
		PreRunE: loadConfig,
		RunE:    runServe,
	}
	AddCommonFlags(cmd)
	cmd.Flags().StringP("listen", "l", _config.ListenAddr, "Listen IP:Port of the signaling server")
	cmd.Flags().String("auth", "", "user:pass required from sse clients")
	return cmd
}

type server interface {
	http.Handler
	Close()
}

func newServer(auth string) (server, error) {
	switch _config.Signal {
	case config.SignalSSE:
		s := sse.NewServer(_config.Logger())
		if auth != "" {
			user, pass, _ := strings.Cut(auth, ":")
			s.Auth = func(u, p string) bool { return u == user && p == pass }
		}
		return s, nil
	case config.SignalWAMP:
		return wamp.NewServer(_config.SignalRealm, _config.Logger())
	}
	return nil, fmt.Errorf("unknown signaling server kind %q", _config.Signal)
}

func runServe(cmd *cobra.Command, args []string) error {
	auth, _ := cmd.Flags().GetString("auth")
	s, err := newServer(auth)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &http.Server{Addr: _config.ListenAddr, Handler: s}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	_config.Logger().Infof("%s signaling server listening on %s", _config.Signal, _config.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
