package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// RunConfig describes one guest run.
type RunConfig struct {
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Run instantiates the wasip1 command module wasm with the D1 host module
// installed, which runs its main function to completion. A non-zero exit
// code is returned as a *sys.ExitError.
func Run(ctx context.Context, wasm []byte, handler Handler, cfg RunConfig) error {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	if _, err := Install(ctx, r, handler, cfg.Logger); err != nil {
		return fmt.Errorf("wasi: install host module: %w", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithArgs(cfg.Args...).
		WithSysWalltime().
		WithSysNanotime()
	if cfg.Stdin != nil {
		modCfg = modCfg.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(cfg.Stderr)
	}

	mod, err := r.InstantiateWithConfig(ctx, wasm, modCfg)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			return nil
		}
		return fmt.Errorf("wasi: run guest: %w", err)
	}
	return mod.Close(ctx)
}
