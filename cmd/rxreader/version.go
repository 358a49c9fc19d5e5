package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	rxreader "github.com/menta2k/rx-reader"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rxreader %s\n", rxreader.GetVersion())
		fmt.Fprintf(cmd.OutOrStdout(), "  Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
