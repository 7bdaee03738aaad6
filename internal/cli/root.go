package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/d1sql/describe"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "json" | "text"
	Config    string
	Dir       string
	Offline   bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the d1sql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "d1sql",
		Short: "Build-time tooling for D1 queries",
		Long: `d1sql describes, caches and checks the SQL statements of an application
that talks to Cloudflare D1, using the local D1 emulator kept by wrangler.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats)
			}
			setupLogging(cmd, opts)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "json", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to d1sql.yaml (default: <dir>/d1sql.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", ".", "project directory")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "use the query cache only (also D1SQL_OFFLINE=1)")

	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewPrepareCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

func setupLogging(cmd *cobra.Command, opts *RootOptions) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	if opts.LogFormat == "text" {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// loadConfig reads --config, or d1sql.yaml in --dir when it exists.
func (opts *RootOptions) loadConfig() (*Config, error) {
	if opts.Config != "" {
		return LoadConfig(opts.Config, true)
	}
	return LoadConfig(filepath.Join(opts.Dir, DefaultConfigFile), false)
}

// openContext loads the config and builds the describe context for the
// project it names.
func (opts *RootOptions) openContext() (*describe.Context, *Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	dctx, err := describe.NewContext(cfg.ProjectDir())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to locate project", err)
	}
	dctx.Offline = opts.Offline || cfg.Offline || envOffline()
	dctx.Logger = slog.Default()
	return dctx, cfg, nil
}

func envOffline() bool {
	on, _ := strconv.ParseBool(os.Getenv("D1SQL_OFFLINE"))
	return on
}
