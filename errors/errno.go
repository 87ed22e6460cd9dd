// This is a compatibility shim for POSIX-defined errno codes across
// platforms, mapping each file-system-core error condition onto the
// [syscall.Errno] the syscall facade surfaces to callers.

package errors

import (
	"fmt"
	"syscall"
)

type CoreError string

// ErrIO covers block-transport failures and structural FAT inconsistencies
// (a chain ends before `size` says it should).
const ErrIO = CoreError("Input/output error")

// ErrBadHandle covers unknown or wrongly-moded handles.
const ErrBadHandle = CoreError("Bad file descriptor")

// ErrInvalid covers seeks out of range and other bad parameters.
const ErrInvalid = CoreError("Invalid argument")

// ErrNoFreeHandle means the handle table is exhausted.
const ErrNoFreeHandle = CoreError("Too many open files")

// ErrNoSpace means the FAT has no free clusters.
const ErrNoSpace = CoreError("No space left on device")

// ErrNotFound means path resolution ran off the end of a directory table
// without a match.
const ErrNotFound = CoreError("No such file or directory")

// ErrIsADirectory means an operation that requires a regular file was given
// a directory.
const ErrIsADirectory = CoreError("Is a directory")

// ErrNotADirectory means a path component that should be a directory
// resolved to a regular file.
const ErrNotADirectory = CoreError("Not a directory")

// ErrUnsupportedFS means the BPB failed validation at mount time.
const ErrUnsupportedFS = CoreError("Unsupported file system")

// ErrBadMBR means the MBR signature bytes were not 0x55 0xAA.
const ErrBadMBR = CoreError("Invalid MBR signature")

// ErrUnsupportedPartition means the first partition's type byte was not
// 0x0C (FAT32 LBA).
const ErrUnsupportedPartition = CoreError("Operation not supported")

// ErrNoDevice means a path's first component was the reserved "disk" prefix.
const ErrNoDevice = CoreError("No such device")

func (e CoreError) Error() string {
	return string(e)
}

func (e CoreError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

func (e CoreError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}

// errnoTable maps each condition to the POSIX errno the syscall facade
// reports. Several conditions legitimately share a code (BadMBR and Invalid
// both read as EINVAL on a real kernel).
var errnoTable = map[CoreError]syscall.Errno{
	ErrIO:                   syscall.EIO,
	ErrBadHandle:            syscall.EBADF,
	ErrInvalid:              syscall.EINVAL,
	ErrNoFreeHandle:         syscall.EMFILE,
	ErrNoSpace:              syscall.ENOSPC,
	ErrNotFound:             syscall.ENOENT,
	ErrIsADirectory:         syscall.EISDIR,
	ErrNotADirectory:        syscall.ENOTDIR,
	ErrUnsupportedFS:        syscall.ENODEV,
	ErrBadMBR:               syscall.EINVAL,
	ErrUnsupportedPartition: syscall.ENOTSUP,
	ErrNoDevice:             syscall.ENODEV,
}

// ErrnoOf returns the POSIX errno that best matches err. Unrecognized errors
// map to EIO, the fallback a syscall shim uses for "something went wrong
// internally that isn't one of ours."
func ErrnoOf(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	switch typed := err.(type) {
	case CoreError:
		if errno, found := errnoTable[typed]; found {
			return errno
		}
	case customDriverError:
		return ErrnoOf(typed.originalError)
	}

	return syscall.EIO
}
