// Package posix implements the system-call facade: it translates
// kernel-visible open/close/read/write/lseek/fstat/isatty calls onto the
// handle table and file object, reserving handles 0-2 for the console.
package posix

import (
	"strings"
	"syscall"

	"github.com/mistfs/corefs"
	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/handles"
)

// ConsoleHandleCount is the number of low file descriptors reserved for the
// console (stdin, stdout, stderr).
const ConsoleHandleCount = 3

// diskPrefix is a reserved path prefix rejected with ErrNoDevice --
// reserved for a future multi-device namespace this core does not
// implement.
const diskPrefix = "disk"

// Console is the collaborator handling fds 0-2: reads route to the input
// device, writes route to the terminal/UART.
type Console interface {
	ReadInput(buf []byte) (int, error)
	WriteOutput(fd int, buf []byte) (int, error)
}

// Facade binds a mounted volume's handle table to the console collaborator
// and exposes the seven syscalls a C runtime's stubs expect.
type Facade struct {
	volume  *fat32.Volume
	handles *handles.Table
	console Console
}

// New returns a ready Facade over volume's open files and console.
func New(volume *fat32.Volume, console Console) *Facade {
	return &Facade{
		volume:  volume,
		handles: handles.New(),
		console: console,
	}
}

// Open validates path, rejects the reserved "disk" prefix, resolves and
// opens the file, and returns a caller-visible fd (shifted by
// ConsoleHandleCount) or -1 with errno set.
func (f *Facade) Open(path string, flags corefs.IOFlags) (int, syscall.Errno) {
	if hasDiskPrefix(path) {
		return -1, errors.ErrnoOf(errors.ErrNoDevice)
	}

	file, err := f.volume.OpenFile(path, flags)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}

	handle, err := f.handles.Allocate(file)
	if err != nil {
		file.Close()
		return -1, errors.ErrnoOf(err)
	}

	return handle + ConsoleHandleCount, 0
}

// Close releases fd's handle and flushes the file it owned. Console fds
// are a no-op success; closing the console is never an error.
func (f *Facade) Close(fd int) syscall.Errno {
	if fd < ConsoleHandleCount {
		return 0
	}

	file, err := f.handles.Release(fd - ConsoleHandleCount)
	if err != nil {
		return errors.ErrnoOf(err)
	}
	file.Close()
	return 0
}

// Read routes fd 0 to the console's input collaborator and fds >=
// ConsoleHandleCount to the owning file; any other console fd (1, 2) is not
// readable and fails BadHandle.
func (f *Facade) Read(fd int, buf []byte) (int, syscall.Errno) {
	if fd < ConsoleHandleCount {
		if fd != 0 {
			return -1, errors.ErrnoOf(errors.ErrBadHandle)
		}
		n, err := f.console.ReadInput(buf)
		if err != nil {
			return -1, errors.ErrnoOf(errors.ErrIO.WrapError(err))
		}
		return n, 0
	}

	file, err := f.handles.Get(fd - ConsoleHandleCount)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	n, err := file.Read(buf)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	return n, 0
}

// Write routes fds 1 and 2 to the console's output collaborator and fds >=
// ConsoleHandleCount to the owning file; fd 0 is not writable and fails
// BadHandle.
func (f *Facade) Write(fd int, buf []byte) (int, syscall.Errno) {
	if fd < ConsoleHandleCount {
		if fd == 0 {
			return -1, errors.ErrnoOf(errors.ErrBadHandle)
		}
		n, err := f.console.WriteOutput(fd, buf)
		if err != nil {
			return -1, errors.ErrnoOf(errors.ErrIO.WrapError(err))
		}
		return n, 0
	}

	file, err := f.handles.Get(fd - ConsoleHandleCount)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	n, err := file.Write(buf)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	return n, 0
}

// Lseek fails BadHandle on every console fd; seeking the console is never
// meaningful.
func (f *Facade) Lseek(fd int, offset int64, whence int) (int64, syscall.Errno) {
	if fd < ConsoleHandleCount {
		return -1, errors.ErrnoOf(errors.ErrBadHandle)
	}

	file, err := f.handles.Get(fd - ConsoleHandleCount)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	n, err := file.Seek(offset, whence)
	if err != nil {
		return -1, errors.ErrnoOf(err)
	}
	return n, 0
}

// Fstat reports st_mode = CHARACTER_DEVICE for console fds and a fixed
// S_IFREG mode for any open file fd; no size or other metadata is filled in.
func (f *Facade) Fstat(fd int) (corefs.FileStat, syscall.Errno) {
	if fd < ConsoleHandleCount {
		return corefs.FileStat{ModeFlags: corefs.S_IFCHR}, 0
	}

	_, err := f.handles.Get(fd - ConsoleHandleCount)
	if err != nil {
		return corefs.FileStat{}, errors.ErrnoOf(err)
	}
	// The reference implementation reports a fixed S_IFREG for any valid
	// file handle rather than computing real metadata; this facade keeps
	// that contract (file size tracking on *fat32.File is internal).
	return corefs.FileStat{ModeFlags: corefs.S_IFREG}, 0
}

// Isatty reports true for console fds and false for every other fd,
// valid or not.
func (f *Facade) Isatty(fd int) bool {
	return fd < ConsoleHandleCount
}

func hasDiskPrefix(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	return strings.HasPrefix(trimmed, diskPrefix)
}
