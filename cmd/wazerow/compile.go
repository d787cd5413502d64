package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wazerow/wazerow"
)

func runCompile(ctx context.Context, cmd *cobra.Command, path string) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := r.CompileModule(ctx, bin); err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	return nil
}
