// v0
// internal/cli/runs.go
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/auton88n/tradeayn-sub003/internal/runstore"
)

func RunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted compliance runs",
	}
	cmd.AddCommand(runsVerifyCmd())
	return cmd
}

func runsVerifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify <runs.jsonl>",
		Short: "Verify the hash chain of a run store file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := runstore.VerifyFile(args[0])
			if err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(rep)
			}
			fmt.Fprintf(out, "ok: %d runs, last seq %d, head %s\n", rep.Runs, rep.LastSeq, rep.LastHash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification report as JSON")
	return cmd
}
