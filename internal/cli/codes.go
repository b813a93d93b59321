// v0
// internal/cli/codes.go
package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/logging"
)

func CodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage code tables",
	}
	cmd.AddCommand(codesImportCmd(), codesListCmd())
	return cmd
}

func codesImportCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import <codes.yaml>",
		Short: "Validate a codes file and upsert it into a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := codes.ParseFile(args[0])
			if err != nil {
				return err
			}
			db, err := codes.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := db.Upsert(cmd.Context(), rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d codes into %s\n", n, dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "data/codes.db", "SQLite codes database")
	return cmd
}

func codesListCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "list [system]",
		Short: "List code systems, or the codes of one system",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := openSource(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				systems, err := src.Systems(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range systems {
					fmt.Fprintln(out, s)
				}
				return nil
			}
			rows, err := src.Codes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tCLAUSE\tNAME\tREQUIRED\tAPPLIES TO")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Category, r.RequirementID, r.RequirementName, compliance.RequiredValue(r), r.AppliesTo)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&opts.codesFile, "codes", "", "YAML or JSON codes file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite codes database")
	cmd.MarkFlagsMutuallyExclusive("codes", "db")
	return cmd
}

func discardLogger() *slog.Logger {
	return logging.Discard()
}
