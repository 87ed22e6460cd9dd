// Package corefs defines the types shared by every layer of the file system
// core: on-disk stat information, open-mode flags, and the mode-bit
// constants used to describe directory entries to callers.
package corefs

import (
	"os"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// File mode flags, mirroring the POSIX S_IF* / S_I* bits of a C runtime's
// `struct stat`. They are stored in FileStat.ModeFlags as-is; they are not
// [os.FileMode]'s own type bits.

const (
	S_IXOTH = 1 << iota
	S_IWOTH = 1 << iota
	S_IROTH = 1 << iota
	S_IXGRP = 1 << iota
	S_IWGRP = 1 << iota
	S_IRGRP = 1 << iota
	S_IXUSR = 1 << iota
	S_IWUSR = 1 << iota
	S_IRUSR = 1 << iota
)

const S_IRWXO = S_IXOTH | S_IWOTH | S_IROTH
const S_IRWXG = S_IXGRP | S_IWGRP | S_IRGRP
const S_IRWXU = S_IXUSR | S_IWUSR | S_IRUSR

const S_IFCHR = 0x2000 // character device (console fds 0-2)
const S_IFDIR = 0x4000
const S_IFREG = 0x8000
const S_IFMT = 0xf000

// IOFlags is the open-mode flag set a caller passes to [fat32.Volume.OpenFile]
// and, shifted through the syscall facade, to `open()`. Exactly one of
// RDONLY, WRONLY, RDWR must be set.
type IOFlags int

const (
	O_RDONLY IOFlags = 1 << iota
	O_WRONLY
	O_RDWR
	O_APPEND
	O_TRUNC
	// O_CREAT is recognized but not implemented; file creation is an
	// extension point left open by this module.
	O_CREAT
)

func (f IOFlags) CanRead() bool {
	return f&O_RDONLY != 0 || f&O_RDWR != 0
}

func (f IOFlags) CanWrite() bool {
	return f&O_WRONLY != 0 || f&O_RDWR != 0
}

func (f IOFlags) Truncate() bool {
	return f&O_TRUNC != 0
}

func (f IOFlags) Append() bool {
	return f&O_APPEND != 0
}

////////////////////////////////////////////////////////////////////////////////

// FileStat is a platform-independent form of [syscall.Stat_t], populated by
// `fstat`. Only the fields FAT32 can actually supply are meaningful; the rest
// are zero-valued.
type FileStat struct {
	ModeFlags    os.FileMode
	Size         int64
	BlockSize    int64
	FirstCluster uint32
	CreatedAt    time.Time
	LastAccessed time.Time
	LastModified time.Time
}

func (stat FileStat) IsDir() bool {
	return stat.ModeFlags.IsDir()
}

func (stat FileStat) IsRegular() bool {
	return stat.ModeFlags.IsRegular()
}
