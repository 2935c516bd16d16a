package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orthoflow/orthoflow/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}
