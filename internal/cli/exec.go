package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/d1sql/d1"
)

// ExecResult is the output of exec.
type ExecResult struct {
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
	Result  d1.QueryResult `json:"result"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql> [args...]",
		Short: "Run a statement against the local D1 emulator",
		Long: `Run one SQL statement against the local D1 emulator through the same
binding and connection code an application uses, and print its rows.

Arguments are bound in order. Each is read as a JSON literal when it parses
as one (42, 1.5, true, null, "text"), and as plain text otherwise.

Example:
  d1sql exec "SELECT * FROM users WHERE id = ?" 1
  d1sql exec "INSERT INTO users (email) VALUES (?)" a@example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dctx, cfg, err := rootOpts.openContext()
			if err != nil {
				return err
			}
			defer dctx.Close()

			h, err := dctx.Emulator()
			if err != nil {
				return WrapExitError(ExitCommandError, "no emulator", err)
			}
			ctx := cmd.Context()
			opts := cfg.Pragmas.Apply(d1.NewConnectOptions(h.Binding())).
				WithLogger(slog.Default()).
				LogStatements(slog.LevelDebug)
			conn, err := opts.Connect(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "connect failed", err)
			}

			q := d1.NewQuery(args[0])
			for _, a := range args[1:] {
				q.Bind(parseArg(a))
			}

			var out ExecResult
			stream := conn.FetchMany(ctx, q)
			defer stream.Close()
			for stream.Next() {
				step := stream.Step()
				if step.Result != nil {
					out.Result = *step.Result
					continue
				}
				if out.Columns == nil {
					for _, col := range step.Row.Columns() {
						out.Columns = append(out.Columns, col.Name())
					}
				}
				values := make([]any, step.Row.Len())
				for i := range values {
					ref, err := step.Row.TryGetRaw(i)
					if err != nil {
						return WrapExitError(ExitCommandError, "read row", err)
					}
					values[i] = d1.DriverValue(ref)
				}
				out.Rows = append(out.Rows, values)
			}
			if err := stream.Err(); err != nil {
				return WrapExitError(ExitCommandError, "exec failed", err)
			}
			return rootOpts.formatter(cmd).Success(out, func(w io.Writer) error {
				return writeExecResult(w, out)
			})
		},
	}
}

// parseArg reads a JSON literal, falling back to the raw text.
func parseArg(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v := v.(type) {
	case map[string]any, []any:
		return s
	case float64:
		if v == math.Trunc(v) && math.Abs(v) <= d1.MaxSafeInteger {
			return int64(v)
		}
	}
	return v
}

func writeExecResult(w io.Writer, out ExecResult) error {
	if len(out.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(out.Columns, "\t"))
		for _, row := range out.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatCell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d rows, %d changed, last insert rowid %d\n",
		len(out.Rows), out.Result.RowsAffected, out.Result.LastInsertRowID)
	return err
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", v)
	default:
		return fmt.Sprint(v)
	}
}
