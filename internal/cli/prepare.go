package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PrepareOptions holds flags for the prepare command.
type PrepareOptions struct {
	*RootOptions
	Prune bool
}

// PrepareResult is the output of prepare.
type PrepareResult struct {
	CacheDir string `json:"cache_dir"`
	Queries  int    `json:"queries"`
	Pruned   int    `json:"pruned"`
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrepareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Write the query cache for offline builds",
		Long: `Describe every query declared in d1sql.yaml against the local D1 emulator
and store the results in the .d1sql query cache. Commit the cache so that
builds without the emulator can still describe the queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dctx, cfg, err := opts.openContext()
			if err != nil {
				return err
			}
			defer dctx.Close()

			queries := cfg.QuerySQL()
			if len(queries) == 0 {
				return WrapExitError(ExitCommandError, "nothing to prepare", fmt.Errorf("no queries declared in %s", DefaultConfigFile))
			}
			cache, err := dctx.Prepare(cmd.Context(), queries...)
			if err != nil {
				return WrapExitError(ExitCommandError, "prepare failed", err)
			}
			result := PrepareResult{CacheDir: cache.Dir, Queries: len(queries)}
			if opts.Prune {
				if result.Pruned, err = cache.Prune(queries); err != nil {
					return WrapExitError(ExitCommandError, "prune failed", err)
				}
			}
			return opts.formatter(cmd).Success(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "prepared %d queries in %s (%d stale entries removed)\n", result.Queries, result.CacheDir, result.Pruned)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "remove cache entries for queries no longer declared")

	return cmd
}
