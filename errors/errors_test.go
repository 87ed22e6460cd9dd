package errors_test

import (
	stderrors "errors"
	"syscall"
	"testing"

	"github.com/mistfs/corefs/errors"
	"github.com/stretchr/testify/assert"
)

func TestCoreErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNoSpace.WithMessage("fat has no free entries")
	assert.Equal(t, "No space left on device: fat has no free entries", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrNoSpace)
}

func TestCoreErrorWrap(t *testing.T) {
	originalErr := stderrors.New("short read")
	newErr := errors.ErrIO.WrapError(originalErr)

	assert.Equal(t, "Input/output error: short read", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
}

func TestErrnoOf(t *testing.T) {
	cases := map[error]syscall.Errno{
		errors.ErrIO:                   syscall.EIO,
		errors.ErrBadHandle:            syscall.EBADF,
		errors.ErrInvalid:              syscall.EINVAL,
		errors.ErrNoFreeHandle:         syscall.EMFILE,
		errors.ErrNoSpace:              syscall.ENOSPC,
		errors.ErrNotFound:             syscall.ENOENT,
		errors.ErrIsADirectory:         syscall.EISDIR,
		errors.ErrNotADirectory:        syscall.ENOTDIR,
		errors.ErrUnsupportedPartition: syscall.ENOTSUP,
		errors.ErrNoDevice:             syscall.ENODEV,
		nil:                            0,
	}

	for err, want := range cases {
		assert.Equal(t, want, errors.ErrnoOf(err))
	}
}

func TestErrnoOfWrapped(t *testing.T) {
	wrapped := errors.ErrNotFound.WithMessage("/missing.txt")
	assert.Equal(t, syscall.ENOENT, errors.ErrnoOf(wrapped))
}
