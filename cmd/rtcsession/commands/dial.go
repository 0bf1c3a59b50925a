package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// NewDialCmd returns the command that sends stdin to a remote endpoint
func NewDialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dial [remote]",
		Short:   "Send stdin lines over a data session and print the replies",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE:    runDial,
	}
	AddEndpointFlags(cmd)
	return cmd
}

func runDial(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, closeClient, err := startClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient()

	ds, err := client.Connect(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	ch, err := ds.Channel(ctx)
	if err != nil {
		return err
	}
	out := os.Stdout
	ch.OnMessage(func(data []byte) {
		fmt.Fprintln(out, string(data))
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ds.Done():
			return fmt.Errorf("session ended: %s", ds.Result().Reason)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := ch.Send([]byte(line)); err != nil {
				return err
			}
		}
	}
}
