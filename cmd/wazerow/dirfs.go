package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wazerow/wazerow/internal/wasm"
)

// dirFS implements wasm.FS rooted at a directory on the host filesystem,
// confining every lookup to stay inside root.
type dirFS struct {
	root string
}

func newDirFS(root string) *dirFS { return &dirFS{root: root} }

func (d *dirFS) resolve(name string) (string, bool) {
	clean := filepath.Join(d.root, filepath.Clean("/"+name))
	if !strings.HasPrefix(clean, d.root) {
		return "", false
	}
	return clean, true
}

func (d *dirFS) OpenFile(name string, flags int, perm uint32) (wasm.File, error) {
	path, ok := d.resolve(name)
	if !ok {
		return nil, os.ErrPermission
	}
	f, err := os.OpenFile(path, flags, os.FileMode(perm))
	if err != nil {
		return nil, err
	}
	return osFile{f}, nil
}

// osFile adapts *os.File to wasm.File; every method but Stat already
// matches verbatim.
type osFile struct{ *os.File }

func (f osFile) Stat() (size int64, isDir bool, err error) {
	info, err := f.File.Stat()
	if err != nil {
		return 0, false, err
	}
	return info.Size(), info.IsDir(), nil
}

var _ wasm.File = osFile{}
