package wasi_snapshot_preview1

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/wazerow/wazerow/api"
)

// filetype values, per the WASI snapshot-01 filetype_t enum. Only the two
// kinds this runtime's sandboxed FS can produce are named.
const (
	filetypeRegularFile = 4
	filetypeDirectory   = 3
)

// whence values, matching io.Seeker's Seek constants numerically.
const (
	whenceSet = 0
	whenceCur = 1
	whenceEnd = 2
)

func ioVecs(ctx context.Context, mod api.Module, iovs, iovsLen uint32) ([][]byte, Errno) {
	mem := mod.Memory()
	bufs := make([][]byte, 0, iovsLen)
	for i := uint32(0); i < iovsLen; i++ {
		base := iovs + i*8
		ptr, ok1 := mem.ReadUint32Le(ctx, base)
		n, ok2 := mem.ReadUint32Le(ctx, base+4)
		if !ok1 || !ok2 {
			return nil, ErrnoFault
		}
		b, ok := mem.Read(ctx, ptr, n)
		if !ok {
			return nil, ErrnoFault
		}
		bufs = append(bufs, b)
	}
	return bufs, ErrnoSuccess
}

// fdWrite is the WASI fd_write function.
func fdWrite(ctx context.Context, mod api.Module, fd, iovs, iovsLen, nwrittenPtr uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok {
		return ErrnoBadf
	}

	bufs, errno := ioVecs(ctx, mod, iovs, iovsLen)
	if errno != ErrnoSuccess {
		return errno
	}

	var written uint32
	for _, b := range bufs {
		n, err := entry.file.Write(b)
		written += uint32(n)
		if err != nil {
			return ErrnoIo
		}
	}
	if !mod.Memory().WriteUint32Le(ctx, nwrittenPtr, written) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// fdRead is the WASI fd_read function.
func fdRead(ctx context.Context, mod api.Module, fd, iovs, iovsLen, nreadPtr uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok {
		return ErrnoBadf
	}

	mem := mod.Memory()
	var read uint32
	for i := uint32(0); i < iovsLen; i++ {
		base := iovs + i*8
		ptr, ok1 := mem.ReadUint32Le(ctx, base)
		n, ok2 := mem.ReadUint32Le(ctx, base+4)
		if !ok1 || !ok2 {
			return ErrnoFault
		}
		b := make([]byte, n)
		rn, err := entry.file.Read(b)
		read += uint32(rn)
		if rn > 0 && !mem.Write(ctx, ptr, b[:rn]) {
			return ErrnoFault
		}
		if err != nil {
			break
		}
		if uint32(rn) < n {
			break
		}
	}
	if !mem.WriteUint32Le(ctx, nreadPtr, read) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// fdClose is the WASI fd_close function.
func fdClose(ctx context.Context, mod api.Module, fd uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.remove(fd)
	if !ok {
		return ErrnoBadf
	}
	if err := entry.file.Close(); err != nil {
		return ErrnoIo
	}
	return ErrnoSuccess
}

// fdSeek is the WASI fd_seek function.
func fdSeek(ctx context.Context, mod api.Module, fd uint32, offset int64, whence uint32, newOffsetPtr uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok {
		return ErrnoBadf
	}
	if whence > whenceEnd {
		return ErrnoInval
	}

	newOffset, err := entry.file.Seek(offset, int(whence))
	if err != nil {
		return ErrnoIo
	}
	if !mod.Memory().WriteUint64Le(ctx, newOffsetPtr, uint64(newOffset)) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// fdFdstatGet is the WASI fd_fdstat_get function. It writes a minimal
// fdstat_t: filetype at offset 0, fdflags at offset 2, both rights fields
// zeroed since this runtime does not enforce WASI's capability model.
func fdFdstatGet(ctx context.Context, mod api.Module, fd, resultPtr uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok {
		return ErrnoBadf
	}

	filetype := byte(filetypeRegularFile)
	if entry.isDir {
		filetype = filetypeDirectory
	}

	mem := mod.Memory()
	buf := make([]byte, 24)
	buf[0] = filetype
	if !mem.Write(ctx, resultPtr, buf) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// fdPrestatGet is the WASI fd_prestat_get function: reports whether fd is a
// preopened directory, and if so, the byte length of its guest-visible path.
func fdPrestatGet(ctx context.Context, mod api.Module, fd, resultPtr uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok || entry.path == "" {
		return ErrnoBadf
	}

	mem := mod.Memory()
	if !mem.WriteByte(ctx, resultPtr, 0) { // tag: __WASI_PREOPENTYPE_DIR
		return ErrnoFault
	}
	if !mem.WriteUint32Le(ctx, resultPtr+4, uint32(len(entry.path))) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// fdPrestatDirName is the WASI fd_prestat_dir_name function.
func fdPrestatDirName(ctx context.Context, mod api.Module, fd, pathPtr, pathLen uint32) uint32 {
	table, _, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	entry, ok := table.lookup(fd)
	if !ok || entry.path == "" {
		return ErrnoBadf
	}
	if uint32(len(entry.path)) > pathLen {
		return ErrnoInval
	}
	if !mod.Memory().Write(ctx, pathPtr, []byte(entry.path)) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// pathOpen is the WASI path_open function: opens a path relative to the
// preopened root, ignoring lookup flags, rights and fdflags this runtime
// doesn't separately enforce beyond what the sandboxed FS implementation
// itself applies.
func pathOpen(ctx context.Context, mod api.Module, _ uint32, pathPtr, pathLen, oflags uint32, _ uint64, _ uint64, fdflags, openedFdPtr uint32) uint32 {
	table, sys, ok := fdTableFor(mod)
	if !ok {
		return ErrnoFault
	}
	if sys.FS == nil {
		return ErrnoNotsup
	}

	raw, ok := mod.Memory().Read(ctx, pathPtr, pathLen)
	if !ok {
		return ErrnoFault
	}
	name := path.Clean("/" + string(raw))

	flags := os.O_RDONLY
	if oflags&oflagsCreat != 0 {
		flags |= os.O_CREATE
	}
	if oflags&oflagsTrunc != 0 {
		flags |= os.O_TRUNC
	}
	if oflags&oflagsExcl != 0 {
		flags |= os.O_EXCL
	}
	if fdflags&fdflagsAppend != 0 {
		flags |= os.O_APPEND
	}

	f, err := sys.FS.OpenFile(name, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrnoNoent
		}
		if errors.Is(err, os.ErrExist) {
			return ErrnoExist
		}
		return ErrnoIo
	}

	_, isDir, statErr := f.Stat()
	if statErr != nil && !errors.Is(statErr, io.EOF) {
		return ErrnoIo
	}

	fd := table.insert(&fdEntry{file: f, path: name, isDir: isDir})
	if !mod.Memory().WriteUint32Le(ctx, openedFdPtr, fd) {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// oflags and fdflags bits used by path_open, per the WASI snapshot-01 ABI.
const (
	oflagsCreat = 1 << 0
	oflagsExcl  = 1 << 2
	oflagsTrunc = 1 << 3

	fdflagsAppend = 1 << 0
)
