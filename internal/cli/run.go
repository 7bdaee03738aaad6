package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	wasihost "github.com/tomyedwab/d1sql/wasi/host"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <module.wasm> [args...]",
		Short: "Run a wasip1 guest against the local D1 emulator",
		Long: `Run a WebAssembly command module built with GOOS=wasip1. The module's
D1 binding (see the wasi/guest package) is served from the local D1
emulator database.

Example:
  GOOS=wasip1 GOARCH=wasm go build -o app.wasm ./cmd/app
  d1sql run app.wasm -- --seed`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read module", err)
			}

			dctx, _, err := rootOpts.openContext()
			if err != nil {
				return err
			}
			defer dctx.Close()
			h, err := dctx.Emulator()
			if err != nil {
				return WrapExitError(ExitCommandError, "no emulator", err)
			}

			slog.Debug("running guest", "module", args[0], "db", dctx.EmulatorPath())
			err = wasihost.Run(cmd.Context(), wasm, h.HandleRequest, wasihost.RunConfig{
				Args:   append([]string{filepath.Base(args[0])}, args[1:]...),
				Stdin:  cmd.InOrStdin(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Logger: slog.Default(),
			})
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("guest %s failed", args[0]), err)
			}
			return nil
		},
	}
}
