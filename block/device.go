// Package block defines the sector-transport contract that every layer
// above it is built on, plus two host-side implementations used by tests and
// the CLI: a file-backed device and an in-memory device.
package block

import (
	"io"

	"github.com/mistfs/corefs/errors"
)

// SectorSize is the fixed logical sector size this core supports. Mount
// fails with ErrUnsupportedFS if a volume's BPB claims otherwise.
const SectorSize = 512

// Device is the block-transport contract: `transfer(lba, count, buffer,
// write)` over 512-byte logical sectors, synchronous. A production
// implementation would talk to real hardware (an SD-card or UART driver);
// this module only ships host-side doubles.
type Device interface {
	// Transfer reads (write == false) or writes (write == true) count
	// sectors starting at lba. buffer must be exactly count*SectorSize
	// bytes. A transport failure returns errors.ErrIO.
	Transfer(lba uint32, count uint32, buffer []byte, write bool) error

	// TotalSectors reports the size of the device, in sectors.
	TotalSectors() uint32
}

////////////////////////////////////////////////////////////////////////////////

// FileDevice adapts an *os.File (or any io.ReaderAt, with an optional
// io.WriterAt) into a Device, translating sector numbers into byte offsets the way
// drivers/common/blockdevice.go does for disko's BlockDevice.
type FileDevice struct {
	stream       io.ReaderAt
	writer       io.WriterAt
	totalSectors uint32
}

// NewFileDevice wraps stream as a Device with the given total sector count.
// writer may be nil for a read-only device; writes then fail with
// errors.ErrIO.
func NewFileDevice(stream io.ReaderAt, writer io.WriterAt, totalSectors uint32) *FileDevice {
	return &FileDevice{stream: stream, writer: writer, totalSectors: totalSectors}
}

func (d *FileDevice) TotalSectors() uint32 {
	return d.totalSectors
}

func (d *FileDevice) Transfer(lba uint32, count uint32, buffer []byte, write bool) error {
	if count < 1 {
		return errors.ErrInvalid.WithMessage("transfer count must be >= 1")
	}
	if lba+count > d.totalSectors {
		return errors.ErrIO.WithMessage("transfer extends past end of device")
	}
	wantLen := int(count) * SectorSize
	if len(buffer) != wantLen {
		return errors.ErrInvalid.WithMessage("buffer size does not match count*SectorSize")
	}

	offset := int64(lba) * SectorSize

	if write {
		if d.writer == nil {
			return errors.ErrIO.WithMessage("device is read-only")
		}
		n, err := d.writer.WriteAt(buffer, offset)
		if err != nil {
			return errors.ErrIO.WrapError(err)
		}
		if n != wantLen {
			return errors.ErrIO.WithMessage("short write")
		}
		return nil
	}

	n, err := d.stream.ReadAt(buffer, offset)
	if err != nil && err != io.EOF {
		return errors.ErrIO.WrapError(err)
	}
	if n != wantLen {
		return errors.ErrIO.WithMessage("short read")
	}
	return nil
}
