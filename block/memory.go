package block

import (
	"io"

	"github.com/mistfs/corefs/errors"
	"github.com/xaionaro-go/bytesextra"
)

// MemoryDevice is a Device backed entirely by an in-memory byte slice,
// wrapped as an io.ReadWriteSeeker via bytesextra. It is the backing store
// for every fixture image used by this module's tests and by the CLI's
// "mkimage" command.
type MemoryDevice struct {
	storage      []byte
	stream       io.ReadWriteSeeker
	totalSectors uint32
}

// NewMemoryDevice wraps storage, whose length must be an exact multiple of
// SectorSize, as a Device.
func NewMemoryDevice(storage []byte) *MemoryDevice {
	return &MemoryDevice{
		storage:      storage,
		stream:       bytesextra.NewReadWriteSeeker(storage),
		totalSectors: uint32(len(storage) / SectorSize),
	}
}

func (d *MemoryDevice) TotalSectors() uint32 {
	return d.totalSectors
}

// Bytes exposes the backing storage directly, used by fixtures to patch in
// well-known bytes (MBR, BPB, directory entries) without going through the
// Device interface.
func (d *MemoryDevice) Bytes() []byte {
	return d.storage
}

func (d *MemoryDevice) Transfer(lba uint32, count uint32, buffer []byte, write bool) error {
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

	if _, err := d.stream.Seek(int64(lba)*SectorSize, io.SeekStart); err != nil {
		return errors.ErrIO.WrapError(err)
	}

	if write {
		n, err := d.stream.Write(buffer)
		if err != nil {
			return errors.ErrIO.WrapError(err)
		}
		if n != wantLen {
			return errors.ErrIO.WithMessage("short write")
		}
		return nil
	}

	n, err := io.ReadFull(d.stream, buffer)
	if err != nil {
		return errors.ErrIO.WrapError(err)
	}
	if n != wantLen {
		return errors.ErrIO.WithMessage("short read")
	}
	return nil
}
