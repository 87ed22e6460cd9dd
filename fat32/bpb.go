package fat32

import (
	"encoding/binary"

	"github.com/mistfs/corefs/errors"
)

// BPB offsets used by this core. Fields not read here (OEM name, volume
// label, FSInfo sector, etc.) are left to FSInfo maintenance, an explicit
// extension point this core does not implement.
const (
	bpbBytesPerSectorOffset    = 0x0B
	bpbSectorsPerClusterOffset = 0x0D
	bpbReservedSectorsOffset   = 0x0E
	bpbNumFATsOffset           = 0x10
	bpbSectorsPerFATOffset     = 0x24
	bpbRootDirClusterOffset    = 0x2C
)

const bytesPerSector = 512

// bootSector holds the fields of the FAT32 BPB relevant to mount.
type bootSector struct {
	sectorsPerCluster   uint8
	reservedSectorCount uint16
	numFATs             uint8
	sectorsPerFAT       uint32
	rootDirStartCluster uint32
}

var validSectorsPerCluster = map[uint8]bool{
	1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true, 128: true,
}

// parseBootSector validates and extracts the BPB fields from a single
// 512-byte sector (the partition's first sector).
func parseBootSector(sector []byte) (bootSector, error) {
	if len(sector) != bytesPerSector {
		return bootSector{}, errors.ErrUnsupportedFS.WithMessage("boot sector must be 512 bytes")
	}

	bytesPerSectorField := binary.LittleEndian.Uint16(sector[bpbBytesPerSectorOffset:])
	if bytesPerSectorField != bytesPerSector {
		return bootSector{}, errors.ErrUnsupportedFS.WithMessage("bytes_per_sector must be 512")
	}

	sectorsPerCluster := sector[bpbSectorsPerClusterOffset]
	if !validSectorsPerCluster[sectorsPerCluster] {
		return bootSector{}, errors.ErrUnsupportedFS.WithMessage(
			"sectors_per_cluster must be a power of two in [1, 128]")
	}

	numFATs := sector[bpbNumFATsOffset]
	if numFATs == 0 {
		return bootSector{}, errors.ErrUnsupportedFS.WithMessage("num_fats must be nonzero")
	}

	return bootSector{
		sectorsPerCluster:   sectorsPerCluster,
		reservedSectorCount: binary.LittleEndian.Uint16(sector[bpbReservedSectorsOffset:]),
		numFATs:             numFATs,
		sectorsPerFAT:       binary.LittleEndian.Uint32(sector[bpbSectorsPerFATOffset:]),
		rootDirStartCluster: binary.LittleEndian.Uint32(sector[bpbRootDirClusterOffset:]),
	}, nil
}
