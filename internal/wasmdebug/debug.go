// Package wasmdebug assembles human-readable wasm stack traces for errors
// recovered at the host/wasm call boundary.
package wasmdebug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasmruntime"
)

// FuncName formats a frame name from its defining module, its own name (may
// be empty when the module carries no name section entry), and its index in
// the function index namespace.
func FuncName(moduleName, funcName string, funcIdx uint32) string {
	if funcName == "" {
		funcName = "$" + strconv.FormatUint(uint64(funcIdx), 10)
	}
	return moduleName + "." + funcName
}

// signature appends a parenthesized parameter/result signature to name, in
// the style of the WebAssembly text format.
func signature(name string, paramTypes, resultTypes []api.ValueType) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, t := range paramTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(api.ValueTypeName(t))
	}
	sb.WriteByte(')')
	switch len(resultTypes) {
	case 0:
	case 1:
		sb.WriteByte(' ')
		sb.WriteString(api.ValueTypeName(resultTypes[0]))
	default:
		sb.WriteString(" (")
		for i, t := range resultTypes {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(api.ValueTypeName(t))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// ErrorBuilder accumulates call frames (innermost first) and renders them
// into an error alongside whatever was recovered from a panic.
type ErrorBuilder interface {
	// AddFrame records one call frame. paramTypes/resultTypes may be nil for
	// host functions that don't carry wasm signature metadata.
	AddFrame(name string, paramTypes, resultTypes []api.ValueType)
	// FromRecovered builds the final error from a value taken from recover().
	FromRecovered(recovered interface{}) error
}

type errorBuilder struct {
	frames []string
}

// NewErrorBuilder returns an empty ErrorBuilder.
func NewErrorBuilder() ErrorBuilder {
	return &errorBuilder{}
}

// AddFrame implements ErrorBuilder.AddFrame.
func (b *errorBuilder) AddFrame(name string, paramTypes, resultTypes []api.ValueType) {
	b.frames = append(b.frames, signature(name, paramTypes, resultTypes))
}

// FromRecovered implements ErrorBuilder.FromRecovered.
func (b *errorBuilder) FromRecovered(recovered interface{}) error {
	var wrapped error
	switch v := recovered.(type) {
	case error:
		wrapped = v
	default:
		wrapped = fmt.Errorf("%v", v)
	}

	var sb strings.Builder
	sb.WriteString(wrapped.Error())
	// A wasmruntime.Error is already a fully-formed trap message (ex. the
	// callstack-overflow sentinel's "wasm error:" prefix); don't relabel it.
	if _, ok := recovered.(wasmruntime.Error); !ok {
		sb.WriteString(" (recovered by wazerow)")
	}

	if len(b.frames) > 0 {
		sb.WriteString("\nwasm stack trace:")
		for _, f := range b.frames {
			sb.WriteString("\n\t")
			sb.WriteString(f)
		}
	}

	return &tracedError{msg: sb.String(), cause: wrapped}
}

type tracedError struct {
	msg   string
	cause error
}

func (e *tracedError) Error() string { return e.msg }
func (e *tracedError) Unwrap() error { return e.cause }
