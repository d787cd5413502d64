package wazero

import (
	"context"
	"errors"
	"io"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// RuntimeConfig controls runtime behavior, with the default implementation
// as NewRuntimeConfig.
type RuntimeConfig struct {
	enabledFeatures  api.CoreFeatures
	ctx              context.Context
	memoryLimitPages uint32
	cache            Cache
}

// NewRuntimeConfig returns a RuntimeConfig enabling the finished, Phase 4+
// WebAssembly Core 2.0 feature set.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		enabledFeatures:  api.CoreFeaturesV2,
		ctx:              context.Background(),
		memoryLimitPages: wasm.MemoryLimitPages,
	}
}

// clone ensures all fields are copied even if nil.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithContext sets the default context used to initialize the module. Defaults to context.Background if nil.
//
// Notes:
//   - If the Module defines a start function, this is used to invoke it.
//   - This is the outer-most ancestor of api.Module Context() during api.Function invocations.
func (c *RuntimeConfig) WithContext(ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := c.clone()
	ret.ctx = ctx
	return ret
}

// WithMemoryLimitPages reduces the maximum number of pages a module can define from 65536 pages (4GiB) to a lower value.
//
// Notes:
//   - If a module defines no memory max limit, Runtime.CompileModule sets max to this value.
//   - Any "memory.grow" instruction that would exceed this limit returns -1 instead.
func (c *RuntimeConfig) WithMemoryLimitPages(memoryLimitPages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryLimitPages = memoryLimitPages
	return ret
}

// WithCoreFeatures replaces the full set of enabled WebAssembly Core
// proposals. Use api.CoreFeaturesV1/V2/V3 as a starting point, combined with
// '|' for anything beyond those groupings (e.g. CoreFeaturesV2|CoreFeatureTailCall).
func (c *RuntimeConfig) WithCoreFeatures(features api.CoreFeatures) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures = features
	return ret
}

// WithCompilationCache assigns a Cache shared across one or more Runtime
// instances, created via NewCache. The Runtime keeps the Cache but does not
// read from or write to it: CompileModule always compiles from scratch, and
// its result is not reused by another Runtime backed by the same cache.
func (c *RuntimeConfig) WithCompilationCache(ca Cache) *RuntimeConfig {
	ret := c.clone()
	ret.cache = ca
	return ret
}

// CompiledModule is a WebAssembly module ready to be instantiated
// (Runtime.InstantiateModule) as an api.Module.
//
// Note: In WebAssembly terms, this is a decoded and validated module. wazerow
// avoids using the term "Module" for both before and after instantiation, as
// the conflation invites confusion.
type CompiledModule struct {
	module *wasm.Module
}

// ModuleConfig configures resources needed by functions that have low-level
// interactions with the host: standard streams, arguments, environment
// variables, and the module's instantiation name.
type ModuleConfig struct {
	name   string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	args   []string
	// environ is pair-indexed to retain order, similar to os.Environ.
	environ     []string
	environKeys map[string]int
	fs          wasm.FS
}

// NewModuleConfig returns a ModuleConfig with no name override, no standard
// streams, and no filesystem access.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{environKeys: map[string]int{}}
}

// WithName configures the module name. Defaults to whatever name the
// decoded custom "name" section assigned the module, or empty if none.
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	c.name = name
	return c
}

// WithArgs assigns command-line arguments visible to an imported function
// that reads an arg vector, such as wasi_snapshot_preview1's args_get.
// Defaults to none.
func (c *ModuleConfig) WithArgs(args ...string) *ModuleConfig {
	c.args = args
	return c
}

// WithEnv sets an environment variable visible to a Module that imports
// functions such as wasi_snapshot_preview1's environ_get. Defaults to none.
// Replaces any existing value for the same key.
func (c *ModuleConfig) WithEnv(key, value string) *ModuleConfig {
	if i, ok := c.environKeys[key]; ok {
		c.environ[i+1] = value // environ is pair-indexed, so the value is 1 after the key.
	} else {
		c.environKeys[key] = len(c.environ)
		c.environ = append(c.environ, key, value)
	}
	return c
}

// WithStdin configures where standard input (file descriptor 0) is read.
// Defaults to return io.EOF.
func (c *ModuleConfig) WithStdin(stdin io.Reader) *ModuleConfig {
	c.stdin = stdin
	return c
}

// WithStdout configures where standard output (file descriptor 1) is
// written. Defaults to io.Discard.
func (c *ModuleConfig) WithStdout(stdout io.Writer) *ModuleConfig {
	c.stdout = stdout
	return c
}

// WithStderr configures where standard error (file descriptor 2) is
// written. Defaults to io.Discard.
func (c *ModuleConfig) WithStderr(stderr io.Writer) *ModuleConfig {
	c.stderr = stderr
	return c
}

// WithFS assigns the filesystem visible to an imported function that opens
// paths, such as wasi_snapshot_preview1's path_open. Defaults to none, which
// fails every open with ErrnoNotsup.
func (c *ModuleConfig) WithFS(fs wasm.FS) *ModuleConfig {
	c.fs = fs
	return c
}

// toSysContext builds the internal, already-resolved wasm.SysContext this
// ModuleConfig describes.
func (c *ModuleConfig) toSysContext() (*wasm.SysContext, error) {
	var environ []string // intentionally nil unless non-empty, to default cheaply.
	for i := 0; i < len(c.environ); i += 2 {
		key, value := c.environ[i], c.environ[i+1]
		if len(key) == 0 {
			return nil, errors.New("environ invalid: empty key")
		}
		for j := 0; j < len(key); j++ {
			if key[j] == '=' {
				return nil, errors.New("environ invalid: key contains '=' character")
			}
		}
		environ = append(environ, key+"="+value)
	}

	return &wasm.SysContext{
		Args:    c.args,
		Environ: environ,
		Stdin:   c.stdin,
		Stdout:  c.stdout,
		Stderr:  c.stderr,
		FS:      c.fs,
	}, nil
}
