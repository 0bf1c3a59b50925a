package main

import (
	"os"

	cmd "github.com/shynome/rtcsession/cmd/rtcsession/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewServeCmd(),
		cmd.NewListenCmd(),
		cmd.NewDialCmd(),
		cmd.NewWGCmd(),
		cmd.VersionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
