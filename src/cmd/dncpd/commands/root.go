package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for dncpd
var RootCmd = &cobra.Command{
	Use:              "dncpd",
	Short:            "DNCP state synchronization daemon",
	TraverseChildren: true,
}
