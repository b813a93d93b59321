// v0
// internal/cli/check.go
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/auton88n/tradeayn-sub003/internal/codes"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
	"github.com/auton88n/tradeayn-sub003/internal/report"
	"github.com/auton88n/tradeayn-sub003/internal/service"
)

// ErrNotCompliant is returned by check --strict when any result fails.
var ErrNotCompliant = errors.New("project is not compliant")

type checkOptions struct {
	codesFile     string
	dbPath        string
	system        string
	format        string
	reportSkipped bool
	strict        bool
}

func CheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check <request.json>",
		Short: "Evaluate a check request and print the report",
		Long: "Reads a request document {projectId, codeSystem, project, inputs, codes?} " +
			"and evaluates it against inline codes, a codes file or a codes database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := runCheck(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			if err := report.Render(cmd.OutOrStdout(), rep, format); err != nil {
				return err
			}
			if opts.strict && !rep.Summary.Compliant {
				return ErrNotCompliant
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.codesFile, "codes", "", "YAML or JSON codes file")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite codes database")
	cmd.Flags().StringVar(&opts.system, "system", "", "code system, overrides the request")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text or json")
	cmd.Flags().BoolVar(&opts.reportSkipped, "report-skipped", false, "emit not_applicable for pairs missing data")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any check fails")
	cmd.MarkFlagsMutuallyExclusive("codes", "db")
	return cmd
}

func runCheck(ctx context.Context, path string, opts checkOptions) (report.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Report{}, err
	}
	var req service.CheckRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return report.Report{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if opts.system != "" {
		req.CodeSystem = opts.system
	}

	var src codes.Source
	if len(req.Codes) == 0 {
		opened, closeFn, err := openSource(ctx, opts)
		if err != nil {
			return report.Report{}, err
		}
		defer closeFn()
		src = opened
	}
	system, results, err := service.Evaluate(ctx, src, req, compliance.Options{ReportSkipped: opts.reportSkipped})
	if err != nil {
		return report.Report{}, err
	}
	return report.Build("", req.ProjectID, system, time.Now(), results), nil
}

func openSource(ctx context.Context, opts checkOptions) (codes.Source, func(), error) {
	switch {
	case opts.dbPath != "":
		db, err := codes.OpenSQLite(ctx, opts.dbPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	case opts.codesFile != "":
		fs, err := codes.NewFileSource(opts.codesFile, discardLogger())
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
	return nil, nil, errors.New("request has no inline codes: pass --codes or --db")
}
