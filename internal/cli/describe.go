package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/d1sql/d1"
	"github.com/tomyedwab/d1sql/describe"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <sql>",
		Short: "Show the parameters and result columns of a statement",
		Long: `Describe a SQL statement against the local D1 emulator, or the query cache
when the emulator is not available, and suggest Go types for its columns.

Example:
  d1sql describe "SELECT id, email FROM users WHERE id = ?"
  d1sql describe --format json "SELECT * FROM users"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dctx, _, err := rootOpts.openContext()
			if err != nil {
				return err
			}
			defer dctx.Close()

			desc, err := dctx.Describe(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "describe failed", err)
			}
			return rootOpts.formatter(cmd).Success(desc, func(w io.Writer) error {
				return writeDescribe(w, desc)
			})
		},
	}
}

func writeDescribe(w io.Writer, desc *d1.Describe) error {
	if desc.Parameters != nil {
		fmt.Fprintf(w, "parameters: %d\n", desc.Parameters.Count)
	}
	if len(desc.Columns) == 0 {
		fmt.Fprintln(w, "columns: none")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTYPE\tGO TYPE")
	for i, col := range desc.Columns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", col.Ordinal(), col.Name(), col.TypeInfo(), describe.SuggestGoType(desc, i))
	}
	return tw.Flush()
}
