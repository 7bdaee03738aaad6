package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/d1sql/describe"
)

// CheckProblem is one query that failed its check.
type CheckProblem struct {
	Query    string   `json:"query"`
	Problems []string `json:"problems"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check declared query types against the database",
		Long: `Describe every query declared in d1sql.yaml and compare the declared
parameter and column Go types with the statement, using the weak D1
compatibility rules. Exits with status 1 when any query fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dctx, cfg, err := rootOpts.openContext()
			if err != nil {
				return err
			}
			defer dctx.Close()

			var failed []CheckProblem
			for _, q := range cfg.Queries {
				if problems := checkQuery(cmd, dctx, q); len(problems) > 0 {
					failed = append(failed, CheckProblem{Query: q.Name, Problems: problems})
				}
			}

			f := rootOpts.formatter(cmd)
			if len(failed) == 0 {
				return f.Success(map[string]int{"checked": len(cfg.Queries)}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "✓ %d queries ok\n", len(cfg.Queries))
					return err
				})
			}
			msg := fmt.Sprintf("%d of %d queries failed", len(failed), len(cfg.Queries))
			if err := f.Failure(msg, failed, func(w io.Writer) error {
				for _, p := range failed {
					fmt.Fprintf(w, "✗ %s\n", p.Query)
					for _, problem := range p.Problems {
						fmt.Fprintf(w, "    %s\n", problem)
					}
				}
				return nil
			}); err != nil {
				return err
			}
			return &ExitError{Code: ExitFailure, Message: msg}
		},
	}
}

func checkQuery(cmd *cobra.Command, dctx *describe.Context, q QueryConfig) []string {
	params, columns, err := q.Declarations()
	if err != nil {
		return []string{err.Error()}
	}
	desc, err := dctx.Describe(cmd.Context(), q.SQL)
	if err != nil {
		return []string{err.Error()}
	}
	return splitJoined(describe.Check(desc, params, columns))
}

// splitJoined flattens an errors.Join result into one message per error.
func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, splitJoined(e)...)
		}
		return out
	}
	return strings.Split(err.Error(), "\n")
}
