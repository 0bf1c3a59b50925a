package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/shynome/rtcsession/wgbind"
	"github.com/spf13/cobra"
	"golang.zx2c4.com/wireguard/device"
	"golang.zx2c4.com/wireguard/ipc"
	"golang.zx2c4.com/wireguard/tun"
)

// NewWGCmd returns the command that runs a WireGuard device over data
// sessions
func NewWGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wg",
		Short:   "Run a WireGuard tun device whose peers are endpoint ids",
		PreRunE: loadConfig,
		RunE:    runWG,
	}
	AddEndpointFlags(cmd)
	cmd.Flags().String("tun", "rtcsession", "tun name")
	cmd.Flags().Int("wg-log", device.LogLevelError, "WireGuard log level. silent:0 error:1 verbose:2")
	return cmd
}

func runWG(cmd *cobra.Command, args []string) error {
	tunName, _ := cmd.Flags().GetString("tun")
	logLevel, _ := cmd.Flags().GetInt("wg-log")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, closeClient, err := startClient(ctx)
	if err != nil {
		return err
	}
	defer closeClient()

	tdev, err := tun.CreateTUN(tunName, device.DefaultMTU)
	if err != nil {
		return err
	}
	bind := wgbind.NewBind(client, _config.Logger())
	dev := device.NewDevice(tdev, bind, device.NewLogger(logLevel, client.EndpointID()+" "))
	defer dev.Close()

	f, err := ipc.UAPIOpen(tunName)
	if err != nil {
		return err
	}
	uapi, err := ipc.UAPIListen(tunName, f)
	if err != nil {
		return err
	}
	defer uapi.Close()

	go func() {
		for {
			conn, err := uapi.Accept()
			if err != nil {
				return
			}
			go dev.IpcHandle(conn)
		}
	}()

	_config.Logger().Infof("node %s is running on tun %s", client.EndpointID(), tunName)
	select {
	case <-ctx.Done():
	case <-dev.Wait():
	}
	return nil
}
