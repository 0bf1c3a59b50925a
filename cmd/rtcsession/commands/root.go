package commands

import (
	"fmt"

	"github.com/shynome/rtcsession/config"
	"github.com/spf13/cobra"
)

// Version of the rtcsession binary.
const Version = "0.1.0"

var _config = config.NewDefaultConfig()

// RootCmd is the root command for rtcsession
var RootCmd = &cobra.Command{
	Use:              "rtcsession",
	Short:            "WebRTC sessions over a signaling server",
	TraverseChildren: true,
}

// VersionCmd displays the version of rtcsession being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}
