package interpreter

import (
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
	"github.com/wazerow/wazerow/internal/wasmruntime"
	"github.com/wazerow/wazerow/internal/wazeroir"
)

// wasmException is the value thrown as a Go panic by OperationKindThrow and
// OperationKindThrowRef, and caught by runSegment's recover via
// catchInFrame. Propagating it as a panic rather than a sentinel error
// return lets every existing call site (execLoad, execNumeric, and so on)
// keep its current signature; only run/runSegment need to know exceptions
// exist at all.
type wasmException struct {
	tag     *wasm.TagInstance
	payload []uint64
}

func (e *wasmException) Error() string {
	return fmt.Sprintf("uncaught exception (tag %s)", e.tag.ID)
}

func (e *wasmException) Unwrap() error { return wasmruntime.ErrRuntimeUncaughtException }

// catchInFrame scans frame's own compiled operation list for a try
// construct whose protected body encloses frame.pc (the instruction that
// panicked), and, if one of its catch clauses matches exc's tag (or it has
// a catch_all), moves frame.pc to that clause and reports true. Catch
// clauses are checked innermost-enclosing-try first, then progressively
// outer ones in the same frame, matching the nested try/catch unwind order;
// if nothing in frame catches it, catchInFrame reports false and runSegment
// re-panics so the caller's own run call repeats the same search one frame
// up.
//
// Only trys belonging to frame are considered: exceptions crossing a
// function call boundary always unwind at least one frame, since a callee's
// try can never be reached from a pc in the caller's own operation list.
func (ce *callEngine) catchInFrame(frame *callFrame, exc *wasmException) bool {
	ops := frame.result.Operations

	var enclosing []int
	for i := range ops {
		t := &ops[i]
		if t.Kind != wazeroir.OperationKindTry {
			continue
		}
		bodyEnd := int(t.B3)
		if frame.pc > i && frame.pc < bodyEnd {
			enclosing = append(enclosing, i)
		}
	}

	// enclosing is outermost-first (a nested try's opIndex always follows
	// its enclosing try's), so walk it back to front for innermost-first.
	for k := len(enclosing) - 1; k >= 0; k-- {
		t := &ops[enclosing[k]]
		for j := 0; j+1 < len(t.Us); j += 2 {
			tagIdx, pc := t.Us[j], t.Us[j+1]
			if frame.fn.Module.Tags[tagIdx].ID == exc.tag.ID {
				for _, v := range exc.payload {
					ce.pushValue(v)
				}
				frame.currentExn = exc
				frame.pc = int(pc)
				return true
			}
		}
		if t.B2 != uint64(wazeroir.NoTarget) {
			frame.currentExn = exc
			frame.pc = int(t.B2)
			return true
		}
	}
	return false
}
