package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/shynome/rtcsession"
	"github.com/spf13/cobra"
)

// NewListenCmd returns the command that echoes back every data session
func NewListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listen",
		Short:   "Accept data sessions and echo what they send",
		PreRunE: loadConfig,
		RunE:    runListen,
	}
	AddEndpointFlags(cmd)
	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, closeClient, err := startClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient()

	logger := _config.Logger()
	logger.Infof("endpoint %s is listening", client.EndpointID())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return nil
		case s := <-client.Accept():
			ds := s.DataSession()
			if ds == nil {
				s.Reject("only data sessions are accepted")
				continue
			}
			if err := s.Approve(); err != nil {
				logger.WithError(err).Warn("Couldn't approve session")
				continue
			}
			go echo(ctx, ds)
		}
	}
}

func echo(ctx context.Context, ds *rtcsession.DataSession) {
	logger := _config.Logger().WithField("session", ds.ID())
	ch, err := ds.Channel(ctx)
	if err != nil {
		logger.WithError(err).Debug("Session ended before its channel opened")
		return
	}
	ch.OnMessage(func(data []byte) {
		logger.Debugf("echo %d bytes", len(data))
		if err := ch.Send(data); err != nil {
			logger.WithError(err).Debug("Echo failed")
		}
	})
	<-ds.Done()
	logger.WithField("reason", ds.Result().Reason).Info("Session ended")
}
