package fat32

import (
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/mistfs/corefs"
	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/internal/corelog"
)

// noClusterLoaded is the sentinel for File.nthCluster meaning "the buffer
// holds no cluster."
const noClusterLoaded = 0xFFFFFFFF

// File is the per-open state: current offset, cluster-position cache,
// single-cluster buffer, and dirty flags. It is created by OpenFile and
// destroyed by Close; nothing else constructs one.
type File struct {
	vol *Volume

	firstCluster ClusterID
	dirCluster   ClusterID
	dirIndex     int

	nthCluster        uint32 // index of the cluster currently buffered, noClusterLoaded if none
	currentCluster    ClusterID
	offset            int64
	size              int64
	mode              corefs.IOFlags

	buffer         []byte
	bufferModified bool
	fileModified   bool
}

// OpenFile resolves path via the directory walker and returns a ready File.
// Fails NotFound/NotADirectory (from the walker), IsADirectory when path
// names a directory, and IO on transport failure.
func (v *Volume) OpenFile(path string, mode corefs.IOFlags) (*File, error) {
	entry, err := v.Resolve(path)
	if err != nil {
		return nil, err
	}
	if entry.IsDirectory() {
		return nil, errors.ErrIsADirectory.WithMessage(path)
	}

	f := &File{
		vol:          v,
		firstCluster: entry.FirstCluster,
		dirCluster:   entry.ClusterID,
		dirIndex:     entry.Index,
		nthCluster:   noClusterLoaded,
		size:         int64(entry.Size),
		mode:         mode,
		buffer:       make([]byte, v.bytesPerCluster),
	}

	if mode.Truncate() {
		f.size = 0
		f.fileModified = true
	}

	return f, nil
}

// Seek implements seek(file, offset, whence): computes the new offset,
// rejects values outside [0, size], and otherwise just records it -- the
// buffer isn't reloaded until the next Read or Write.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var new int64
	switch whence {
	case io.SeekStart:
		new = offset
	case io.SeekCurrent:
		new = f.offset + offset
	case io.SeekEnd:
		new = f.size + offset
	default:
		return 0, errors.ErrInvalid.WithMessage("unknown whence")
	}

	if new < 0 || new > f.size {
		return 0, errors.ErrInvalid.WithMessage("seek target out of range")
	}

	f.offset = new
	return f.offset, nil
}

// Read implements read(file, out, len): fails BadHandle on a write-only
// file, caps the transfer to the current cluster and to EOF, and never
// spans more than one cluster per call (the syscall facade reissues to
// drain a larger request).
func (f *File) Read(out []byte) (int, error) {
	if !f.mode.CanRead() {
		return 0, errors.ErrBadHandle.WithMessage("file not opened for reading")
	}

	if f.offset >= f.size {
		return 0, nil
	}

	if err := f.ensureCluster(false); err != nil {
		return 0, err
	}

	bufferOffset := f.offset - int64(f.nthCluster)*int64(f.vol.bytesPerCluster)
	length := len(out)
	if remaining := int64(f.vol.bytesPerCluster) - bufferOffset; int64(length) > remaining {
		length = int(remaining)
	}
	if remaining := f.size - f.offset; int64(length) > remaining {
		length = int(remaining)
	}
	if length <= 0 {
		return 0, nil
	}

	copy(out[:length], f.buffer[bufferOffset:bufferOffset+int64(length)])
	f.offset += int64(length)
	return length, nil
}

// Write implements write(file, in, len): fails BadHandle on a read-only
// file, seeks to size first in append mode, extends the chain as needed,
// and never spans more than one cluster per call.
func (f *File) Write(in []byte) (int, error) {
	if !f.mode.CanWrite() {
		return 0, errors.ErrBadHandle.WithMessage("file not opened for writing")
	}

	if f.mode.Append() {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return 0, err
		}
	}

	if err := f.ensureCluster(true); err != nil {
		return 0, err
	}

	bufferOffset := f.offset - int64(f.nthCluster)*int64(f.vol.bytesPerCluster)
	length := len(in)
	if remaining := int64(f.vol.bytesPerCluster) - bufferOffset; int64(length) > remaining {
		length = int(remaining)
	}
	if length <= 0 {
		return 0, nil
	}

	copy(f.buffer[bufferOffset:bufferOffset+int64(length)], in[:length])
	f.bufferModified = true
	f.fileModified = true
	f.offset += int64(length)
	if f.offset > f.size {
		f.size = f.offset
	}

	return length, nil
}

// ensureCluster is the central invariant-preserving routine: it guarantees
// f.buffer holds the cluster containing f.offset, walking or extending the
// chain as necessary.
func (f *File) ensureCluster(allowAllocate bool) error {
	targetNth := uint32(f.offset / int64(f.vol.bytesPerCluster))
	if targetNth == f.nthCluster {
		return nil
	}

	if f.bufferModified {
		if err := f.vol.WriteCluster(f.currentCluster, f.buffer); err != nil {
			return errors.ErrIO.WrapError(err)
		}
		f.bufferModified = false
	}

	var cluster ClusterID
	var nth uint32
	if f.nthCluster == noClusterLoaded || targetNth < f.nthCluster {
		cluster = f.firstCluster
		nth = 0
	} else {
		cluster = f.currentCluster
		nth = f.nthCluster
	}

	for nth < targetNth {
		next, err := f.vol.NextCluster(cluster)
		if err != nil {
			return err
		}
		if next == 0 {
			if !allowAllocate {
				return errors.ErrIO.WithMessage("cluster chain ends before reaching offset")
			}
			next, err = f.vol.Extend(cluster)
			if err != nil {
				return err
			}
		}
		cluster = next
		nth++
	}

	if err := f.vol.TransferCluster(cluster, 1, f.buffer, false); err != nil {
		return errors.ErrIO.WrapError(err)
	}

	f.currentCluster = cluster
	f.nthCluster = nth
	return nil
}

// Close flushes the buffer, rewrites the directory entry's size field if
// modified, truncates any now-orphaned chain tail, and releases the
// per-file buffer. Flush failures are aggregated and reported through the
// logging seam rather than returned -- the caller never sees a failure from
// Close.
func (f *File) Close() {
	var errs *multierror.Error

	if f.bufferModified {
		if err := f.vol.WriteCluster(f.currentCluster, f.buffer); err != nil {
			errs = multierror.Append(errs, err)
		}
		f.bufferModified = false
	}

	if f.fileModified {
		if err := f.rewriteDirectorySize(); err != nil {
			errs = multierror.Append(errs, err)
		}

		// Position on the last byte (offset 0 when empty) so ensureCluster
		// loads the file's final cluster, not the one after it when size is
		// a multiple of the cluster size.
		lastByte := f.size
		if lastByte > 0 {
			lastByte--
		}
		if _, err := f.Seek(lastByte, io.SeekStart); err != nil {
			errs = multierror.Append(errs, err)
		} else if err := f.ensureCluster(false); err == nil {
			if err := f.vol.Truncate(f.currentCluster, false); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		// A zero-length file with no clusters at all yields an ensureCluster
		// failure here; that is expected, not a flush error, since there is
		// no tail to truncate.
	}

	f.buffer = nil

	if errs.ErrorOrNil() != nil {
		corelog.WarnFlushFailure("fat32.File.Close", errs.ErrorOrNil())
	}
}

// rewriteDirectorySize reads the directory cluster holding this file's
// entry, patches the 32-bit size field in place, and writes it back.
func (f *File) rewriteDirectorySize() error {
	buf, err := f.vol.ReadCluster(f.dirCluster)
	if err != nil {
		return err
	}

	entryOffset := f.dirIndex * DirEntrySize
	putUint32LE(buf[entryOffset+0x1C:], uint32(f.size))

	return f.vol.WriteCluster(f.dirCluster, buf)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
