// Package mbr implements the partition locator: it reads LBA 0, checks the
// boot signature, and extracts the first partition's start LBA and size,
// rejecting anything that isn't a FAT32-LBA partition (type byte 0x0C).
package mbr

import (
	"encoding/binary"

	"github.com/mistfs/corefs/block"
	"github.com/mistfs/corefs/errors"
)

// FAT32LBAPartitionType is the MBR partition-type byte for "FAT32 with LBA
// addressing," the only partition type this core accepts.
const FAT32LBAPartitionType = 0x0C

const (
	signatureLowOffset  = 0x1FE
	signatureHighOffset = 0x1FF
	partitionTableStart = 0x1BE
	partitionEntrySize  = 16

	partitionTypeOffset  = 0x04
	partitionStartOffset = 0x08
	partitionSizeOffset  = 0x0C
)

// Partition describes the first partition table entry, the only one this
// core ever looks at.
type Partition struct {
	// StartLBA is the first logical sector of the partition.
	StartLBA uint32
	// SizeLBA is the number of sectors in the partition.
	SizeLBA uint32
}

// ReadFirstPartition reads LBA 0 from dev and returns the first partition
// table entry. It fails with errors.ErrIO if the transfer fails,
// errors.ErrBadMBR if the 0x55 0xAA signature is missing, and
// errors.ErrUnsupportedPartition if the partition's type byte isn't
// FAT32LBAPartitionType. Partition table entries 2-4 are ignored entirely.
func ReadFirstPartition(dev block.Device) (Partition, error) {
	sector := make([]byte, block.SectorSize)
	if err := dev.Transfer(0, 1, sector, false); err != nil {
		return Partition{}, errors.ErrIO.WrapError(err)
	}

	if sector[signatureLowOffset] != 0x55 || sector[signatureHighOffset] != 0xAA {
		return Partition{}, errors.ErrBadMBR.WithMessage("missing 0x55 0xAA boot signature")
	}

	entry := sector[partitionTableStart : partitionTableStart+partitionEntrySize]
	partitionType := entry[partitionTypeOffset]
	if partitionType != FAT32LBAPartitionType {
		return Partition{}, errors.ErrUnsupportedPartition.WithMessage(
			"partition 1 is not FAT32-LBA (0x0C)")
	}

	return Partition{
		StartLBA: binary.LittleEndian.Uint32(entry[partitionStartOffset:]),
		SizeLBA:  binary.LittleEndian.Uint32(entry[partitionSizeOffset:]),
	}, nil
}
