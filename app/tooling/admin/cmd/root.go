// Package cmd contains the admin commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the admin command with every sub command attached.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administrative tasks for the mempool miner",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newValidateCmd(),
		newEncodeCmd(),
		newVerifyCmd(),
	)

	return root
}
