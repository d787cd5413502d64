package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wazerow/wazerow"
	"github.com/wazerow/wazerow/imports/wasi_snapshot_preview1"
)

func newRunCommand() *cobra.Command {
	var dir string
	var envPairs []string
	var funcName string

	cmd := &cobra.Command{
		Use:   "run <path.wasm> [-- args...]",
		Short: "instantiate a WebAssembly binary with a WASI environment and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(context.Background(), cmd, args[0], args[1:], dir, envPairs, funcName)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "host directory to expose to the guest as its root filesystem")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "KEY=VALUE environment variable, may be repeated")
	cmd.Flags().StringVar(&funcName, "func", "_start", "exported function to invoke after instantiation")
	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, path string, guestArgs []string, dir string, envPairs []string, funcName string) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("instantiate wasi_snapshot_preview1: %w", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithArgs(append([]string{path}, guestArgs...)...).
		WithStdout(cmd.OutOrStdout()).
		WithStderr(cmd.ErrOrStderr()).
		WithStdin(cmd.InOrStdin())

	for _, pair := range envPairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
		}
		modCfg = modCfg.WithEnv(k, v)
	}
	if dir != "" {
		modCfg = modCfg.WithFS(newDirFS(dir))
	}

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return exitError(err)
	}

	fn := mod.ExportedFunction(funcName)
	if fn == nil {
		return fmt.Errorf("%s: no exported function %q", path, funcName)
	}

	_, err = fn.Call(ctx)
	return exitError(err)
}

// exitError turns a proc_exit unwind into the process's own exit code,
// rather than printing it as an ordinary runtime error.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var exit *wasi_snapshot_preview1.ExitError
	if errors.As(err, &exit) {
		if exit.ExitCode == 0 {
			return nil
		}
		os.Exit(int(exit.ExitCode))
	}
	return err
}
