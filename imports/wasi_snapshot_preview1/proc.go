package wasi_snapshot_preview1

import (
	"context"
	"fmt"

	"github.com/wazerow/wazerow/api"
)

// ExitError is the panic value proc_exit raises to unwind the call stack.
// Callers of api.Function.Call recover it via errors.As against the
// returned error, since the interpreter wraps whatever it recovers in a
// trace-carrying error before returning.
type ExitError struct {
	ExitCode uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("module exited with code %d", e.ExitCode)
}

// procExit is the WASI proc_exit function. It never returns to its caller:
// it closes the calling module with the given exit code, then panics so the
// interpreter unwinds out of the guest call stack.
func procExit(ctx context.Context, mod api.Module, exitCode uint32) {
	_ = mod.CloseWithExitCode(ctx, exitCode)
	panic(&ExitError{ExitCode: exitCode})
}
