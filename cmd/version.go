package cmd

import (
	"fmt"

	"github.com/interlay/interbtc-indexer/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and commit of the indexer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("interbtc-indexer %s (commit %s)\n", version.GetVersion(), version.GetCommit())
	},
}
