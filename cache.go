package wazero

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	goruntime "runtime"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/compilationcache"
	"github.com/wazerow/wazerow/internal/version"
)

// Cache configures caching behavior across one or more Runtime instances
// created via NewRuntimeWithConfig(ctx, RuntimeConfig.WithCompilationCache(cache)).
//
// Note: a Runtime stores the Cache it is configured with but never reads
// from or writes to it, so no compilation result is persisted on disk or
// shared across Runtime instances through it; wasm.Engine has no hook for
// an external Cache.
type Cache interface {
	api.Closer

	// WithCompilationCacheDirName configures the destination directory of
	// the compilation cache. If the directory doesn't exist, this creates
	// it.
	//
	// A cache is only valid for use with one wazerow build at a time: the
	// directory is namespaced by the running module's version, so
	// upgrading wazerow invalidates any prior cache transparently.
	WithCompilationCacheDirName(dir string) error
}

// NewCache returns a new Cache to be passed to RuntimeConfig.WithCompilationCache.
func NewCache() Cache {
	return &cache{}
}

// cache implements Cache.
type cache struct {
	fileCache compilationcache.Cache
}

// Close implements api.Closer.
func (c *cache) Close(context.Context) error { return nil }

// WithCompilationCacheDirName implements Cache.WithCompilationCacheDirName
func (c *cache) WithCompilationCacheDirName(dir string) error {
	return c.withCompilationCacheDirName(dir, version.GetWazerowVersion())
}

func (c *cache) withCompilationCacheDirName(dir string, wazerowVersion string) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err = mkdir(dir); err != nil {
		return err
	}

	dirname := path.Join(dir, "wazerow-"+wazerowVersion+"-"+goruntime.GOARCH+"-"+goruntime.GOOS)
	if err = mkdir(dirname); err != nil {
		return err
	}

	c.fileCache = compilationcache.NewFileCache(context.WithValue(context.Background(), compilationcache.FileCachePathKey{}, dirname))
	return nil
}

func mkdir(dirname string) error {
	if st, err := os.Stat(dirname); errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(dirname, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %v", dirname, err)
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dirname)
	}
	return nil
}
