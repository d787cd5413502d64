// Package wasi_snapshot_preview1 implements the WASI "wasi_snapshot_preview1"
// ABI as a host module: args, environ, clocks, a sandboxed filesystem view,
// and process exit, wired against the wazerow runtime's public API.
package wasi_snapshot_preview1

// Errno are the error codes returned by WASI functions, encoded as an i32
// result per the snapshot-01 ABI.
//
// See https://github.com/WebAssembly/WASI/blob/snapshot-01/phases/snapshot/docs.md#-errno-enumu16
type Errno = uint32

// Note: prefers POSIX symbol names over WASI ones, matching the upstream
// convention even though only a subset of codes is reachable from this
// runtime's condensed WASI surface.
const (
	ErrnoSuccess  Errno = 0
	ErrnoBadf     Errno = 8
	ErrnoExist    Errno = 20
	ErrnoFault    Errno = 21
	ErrnoInval    Errno = 28
	ErrnoIo       Errno = 29
	ErrnoIsdir    Errno = 31
	ErrnoNoent    Errno = 44
	ErrnoNosys    Errno = 52
	ErrnoNotdir   Errno = 54
	ErrnoNotsup   Errno = 58
	ErrnoOverflow Errno = 61
	ErrnoPerm     Errno = 63
	ErrnoTimedout Errno = 73
)

var errnoNames = [...]string{
	ErrnoSuccess:  "ESUCCESS",
	ErrnoBadf:     "EBADF",
	ErrnoExist:    "EEXIST",
	ErrnoFault:    "EFAULT",
	ErrnoInval:    "EINVAL",
	ErrnoIo:       "EIO",
	ErrnoIsdir:    "EISDIR",
	ErrnoNoent:    "ENOENT",
	ErrnoNosys:    "ENOSYS",
	ErrnoNotdir:   "ENOTDIR",
	ErrnoNotsup:   "ENOTSUP",
	ErrnoOverflow: "EOVERFLOW",
	ErrnoPerm:     "EPERM",
	ErrnoTimedout: "ETIMEDOUT",
}

// ErrnoName returns the POSIX error code name, except ErrnoSuccess, which is
// not an error. Ex. ErrnoBadf -> "EBADF"
func ErrnoName(errno Errno) string {
	if int(errno) < len(errnoNames) {
		if name := errnoNames[errno]; name != "" {
			return name
		}
	}
	return "UNKNOWN"
}
