// v0
// internal/cli/root.go

// Package cli implements the codecheck command line tool.
package cli

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	return NewRoot().Execute()
}

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "codecheck",
		Short:         "Check building inputs against jurisdictional code tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		CheckCmd(),
		CodesCmd(),
		RunsCmd(),
		TopicsCmd(),
	)
	return root
}
