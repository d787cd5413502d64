package wasi_snapshot_preview1

import (
	"io"
	"strings"
	"sync"

	"github.com/wazerow/wazerow/api"
	"github.com/wazerow/wazerow/internal/wasm"
)

// preopenFD is the first guest-visible file descriptor; 0-2 are reserved
// for stdin/stdout/stderr per POSIX and WASI convention.
const preopenFD = 3

// preopenPath is the single guest-visible mount point this runtime exposes.
// A full preopens list (one FS per guest path) is a straightforward
// extension, but every caller observed in this corpus mounts a single root.
const preopenPath = "/"

// fdEntry is one open file descriptor.
type fdEntry struct {
	file  wasm.File
	path  string
	isDir bool
}

// fdTable is the per-guest-module-instance descriptor table: stdio plus
// whatever has been opened via path_open. It is built lazily on first WASI
// call against that instance's SysContext; closing the instance does not
// remove it (see moduleFDTables).
type fdTable struct {
	mu      sync.Mutex
	entries map[uint32]*fdEntry
	next    uint32
}

func newFDTable(sys *wasm.SysContext) *fdTable {
	stdin, stdout, stderr := sys.Stdin, sys.Stdout, sys.Stderr
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	t := &fdTable{entries: map[uint32]*fdEntry{}, next: preopenFD}
	t.entries[0] = &fdEntry{file: readerFile{stdin}}
	t.entries[1] = &fdEntry{file: writerFile{stdout}}
	t.entries[2] = &fdEntry{file: writerFile{stderr}}
	if sys.FS != nil {
		if f, err := sys.FS.OpenFile(preopenPath, 0, 0); err == nil {
			t.entries[preopenFD] = &fdEntry{file: f, path: preopenPath, isDir: true}
			t.next = preopenFD + 1
		}
	}
	return t
}

func (t *fdTable) lookup(fd uint32) (*fdEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	return e, ok
}

func (t *fdTable) insert(e *fdEntry) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.entries[fd] = e
	return fd
}

func (t *fdTable) remove(fd uint32) (*fdEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	if ok {
		delete(t.entries, fd)
	}
	return e, ok
}

// readerFile and writerFile adapt the stdio streams carried on SysContext,
// which are plain io.Reader/io.Writer, to the richer wasm.File surface so
// fd 0-2 share the same fdEntry shape as opened files.
type readerFile struct{ io.Reader }

func (readerFile) Write(p []byte) (int, error)       { return 0, io.ErrClosedPipe }
func (readerFile) Close() error                       { return nil }
func (readerFile) Seek(int64, int) (int64, error)     { return 0, io.ErrClosedPipe }
func (readerFile) Readdirnames(int) ([]string, error) { return nil, io.ErrClosedPipe }
func (readerFile) Stat() (int64, bool, error)         { return 0, false, nil }

type writerFile struct{ io.Writer }

func (writerFile) Read(p []byte) (int, error)          { return 0, io.ErrClosedPipe }
func (writerFile) Close() error                        { return nil }
func (writerFile) Seek(int64, int) (int64, error)      { return 0, io.ErrClosedPipe }
func (writerFile) Readdirnames(int) ([]string, error)  { return nil, io.ErrClosedPipe }
func (writerFile) Stat() (int64, bool, error)          { return 0, false, nil }

var _ wasm.File = readerFile{}
var _ wasm.File = writerFile{}

// moduleFDTables maps a guest ModuleInstance to its lazily-built fdTable.
// Keyed by pointer identity: one table per instantiation. Entries are never
// deleted, including when the module closes.
var moduleFDTables sync.Map // map[*wasm.ModuleInstance]*fdTable

func fdTableFor(mod api.Module) (*fdTable, *wasm.SysContext, bool) {
	mi, ok := mod.(*wasm.ModuleInstance)
	if !ok || mi.Sys == nil {
		return nil, nil, false
	}
	if v, ok := moduleFDTables.Load(mi); ok {
		return v.(*fdTable), mi.Sys, true
	}
	t := newFDTable(mi.Sys)
	actual, _ := moduleFDTables.LoadOrStore(mi, t)
	return actual.(*fdTable), mi.Sys, true
}
