// Command wazerow is a thin CLI over the wazerow runtime: compile a Wasm
// binary, run one with a WASI environment, or print the build version.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wazerow/wazerow/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wazerow",
		Short:         "wazerow runs and inspects WebAssembly modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVersionCommand(), newCompileCommand(), newRunCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the wazerow version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetWazerowVersion())
			return nil
		},
	}
}

func newCompileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <path.wasm>",
		Short: "decode and validate a WebAssembly binary without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(context.Background(), cmd, args[0])
		},
	}
}
