// Package fat32 implements the FAT volume, directory walker, and file
// object: mounting, cluster-chain management, path resolution, and buffered
// per-file read/write/seek.
package fat32

import (
	"encoding/binary"

	"github.com/mistfs/corefs/block"
	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32/fatcache"
	"github.com/mistfs/corefs/mbr"
)

// ClusterID is a cluster number as stored in the FAT (28 significant bits on
// FAT32; the top 4 bits of a raw FAT entry are reserved and masked off).
type ClusterID uint32

const (
	// ClusterIDMask masks off the 4 reserved high bits of a raw FAT32 entry.
	ClusterIDMask ClusterID = 0x0FFFFFFF
	// FirstValidCluster is the lowest cluster ID usable for data; 0 and 1
	// are reserved.
	FirstValidCluster ClusterID = 2
	// MinEndOfChainMarker is the lowest raw FAT value that denotes
	// end-of-chain.
	MinEndOfChainMarker ClusterID = 0x0FFFFFF8
	// EndOfChainMarker is the canonical value this core writes to mark the
	// end of a chain.
	EndOfChainMarker ClusterID = 0x0FFFFFFF
	// FreeCluster is the FAT entry value for an unallocated cluster.
	FreeCluster ClusterID = 0

	entriesPerFATSector = bytesPerSector / 4
)

// IsEndOfChain reports whether c is an end-of-chain marker (>= 0x0FFFFFF8)
// or otherwise not a valid data cluster (< 2).
func IsEndOfChain(c ClusterID) bool {
	return c < FirstValidCluster || c >= MinEndOfChainMarker
}

// Volume is the mounted FAT32 state, owned by exactly one caller for its
// lifetime -- an ordinary heap value rather than a package-level global.
type Volume struct {
	dev block.Device

	partitionStartLBA uint32
	fatStartLBA       uint32
	dataStartLBA      uint32

	sectorsPerCluster   uint32
	bytesPerCluster     uint32
	sectorsPerFAT       uint32
	rootDirStartCluster ClusterID

	// scratch is the one cluster-sized buffer owned by the directory
	// walker. It must never be retained across a call out of the walker.
	scratch []byte

	cache *fatcache.Cache
}

// MountOptions configures Mount. The zero value is a sensible default (no
// FAT-sector cache).
type MountOptions struct {
	// FATCacheSectors is the number of FAT sectors fatcache.Cache may hold
	// resident. 0 disables caching.
	FATCacheSectors int
}

// Mount reads the MBR and BPB from dev and returns a ready-to-use Volume.
// It fails with ErrIO, ErrBadMBR, ErrUnsupportedPartition, or
// ErrUnsupportedFS depending on where validation fails.
func Mount(dev block.Device, opts MountOptions) (*Volume, error) {
	partition, err := mbr.ReadFirstPartition(dev)
	if err != nil {
		return nil, err
	}

	firstSector := make([]byte, block.SectorSize)
	if err := dev.Transfer(partition.StartLBA, 1, firstSector, false); err != nil {
		return nil, errors.ErrIO.WrapError(err)
	}

	bs, err := parseBootSector(firstSector)
	if err != nil {
		return nil, err
	}

	fatStartLBA := partition.StartLBA + uint32(bs.reservedSectorCount)
	dataStartLBA := fatStartLBA + bs.sectorsPerFAT*uint32(bs.numFATs)
	bytesPerCluster := uint32(bs.sectorsPerCluster) * block.SectorSize

	vol := &Volume{
		dev:                 dev,
		partitionStartLBA:   partition.StartLBA,
		fatStartLBA:         fatStartLBA,
		dataStartLBA:        dataStartLBA,
		sectorsPerCluster:   uint32(bs.sectorsPerCluster),
		bytesPerCluster:     bytesPerCluster,
		sectorsPerFAT:       bs.sectorsPerFAT,
		rootDirStartCluster: ClusterID(bs.rootDirStartCluster),
		scratch:             make([]byte, bytesPerCluster),
	}

	vol.cache = fatcache.New(
		opts.FATCacheSectors,
		block.SectorSize,
		func(sectorIndex uint32, buf []byte) error {
			return dev.Transfer(fatStartLBA+sectorIndex, 1, buf, false)
		},
		func(sectorIndex uint32, buf []byte) error {
			return dev.Transfer(fatStartLBA+sectorIndex, 1, buf, true)
		},
	)

	return vol, nil
}

// Close releases the volume's scratch buffer and FAT cache. It never fails;
// there is nothing on this volume that needs flushing beyond what every
// File.Close already guarantees.
func (v *Volume) Close() {
	v.scratch = nil
	v.cache = nil
}

// RootDirCluster returns the first cluster of the root directory.
func (v *Volume) RootDirCluster() ClusterID {
	return v.rootDirStartCluster
}

// BytesPerCluster returns the size of one cluster, in bytes.
func (v *Volume) BytesPerCluster() uint32 {
	return v.bytesPerCluster
}

// clusterToLBA implements cluster_to_lba(c) = data_start_lba + (c-2) *
// sectors_per_cluster.
func (v *Volume) clusterToLBA(c ClusterID) (uint32, error) {
	if c < FirstValidCluster {
		return 0, errors.ErrInvalid.WithMessage("cluster id below first valid cluster")
	}
	return v.dataStartLBA + uint32(c-FirstValidCluster)*v.sectorsPerCluster, nil
}

////////////////////////////////////////////////////////////////////////////////
// FAT entry access

// fatEntryLocation returns the FAT sector index (relative to fatStartLBA)
// and the entry's byte offset within that sector, for cluster c.
func fatEntryLocation(c ClusterID) (sector uint32, byteOffset uint32) {
	sector = uint32(c) / entriesPerFATSector
	index := uint32(c) % entriesPerFATSector
	return sector, index * 4
}

// readFATEntry returns the raw (masked) FAT entry for cluster c.
func (v *Volume) readFATEntry(c ClusterID) (ClusterID, error) {
	sectorIndex, byteOffset := fatEntryLocation(c)
	sector := make([]byte, block.SectorSize)
	if err := v.cache.Read(sectorIndex, sector); err != nil {
		return 0, errors.ErrIO.WrapError(err)
	}
	raw := binary.LittleEndian.Uint32(sector[byteOffset:])
	return ClusterID(raw) & ClusterIDMask, nil
}

// writeFATEntry writes value into cluster c's FAT entry.
func (v *Volume) writeFATEntry(c ClusterID, value ClusterID) error {
	sectorIndex, byteOffset := fatEntryLocation(c)
	sector := make([]byte, block.SectorSize)
	if err := v.cache.Read(sectorIndex, sector); err != nil {
		return errors.ErrIO.WrapError(err)
	}
	binary.LittleEndian.PutUint32(sector[byteOffset:], uint32(value)&uint32(ClusterIDMask))
	if err := v.cache.Write(sectorIndex, sector); err != nil {
		return errors.ErrIO.WrapError(err)
	}
	return nil
}

// NextCluster implements next_cluster(c): reads one FAT sector and returns
// the next cluster in the chain, or 0 for end-of-chain/invalid.
func (v *Volume) NextCluster(c ClusterID) (ClusterID, error) {
	next, err := v.readFATEntry(c)
	if err != nil {
		return 0, err
	}
	if IsEndOfChain(next) {
		return 0, nil
	}
	return next, nil
}

// Extend implements extend(prev_end_cluster): allocates one new cluster,
// appends it to the chain ending at prevEndCluster, and zeroes its data.
// Fails ErrNoSpace if the FAT has no free entry; fails ErrInvalid if
// prevEndCluster isn't actually at the end of its chain.
func (v *Volume) Extend(prevEndCluster ClusterID) (ClusterID, error) {
	prevEntry, err := v.readFATEntry(prevEndCluster)
	if err != nil {
		return 0, err
	}
	if !IsEndOfChain(prevEntry) {
		return 0, errors.ErrInvalid.WithMessage("extend() called on a cluster that is not chain-end")
	}

	freeCluster, err := v.findFreeCluster(prevEndCluster)
	if err != nil {
		return 0, err
	}

	// The new cluster's own end-of-chain marker is written before the
	// predecessor's pointer, so a crash midway leaves at worst an orphan
	// cluster, never a dangling successor pointer.
	if err := v.writeFATEntry(freeCluster, EndOfChainMarker); err != nil {
		return 0, err
	}

	zeroCluster := make([]byte, v.bytesPerCluster)
	if err := v.TransferCluster(freeCluster, 1, zeroCluster, true); err != nil {
		return 0, err
	}

	if err := v.writeFATEntry(prevEndCluster, freeCluster); err != nil {
		return 0, err
	}

	return freeCluster, nil
}

// findFreeCluster scans the FAT for a zero entry, starting at the sector
// containing prevEndCluster and wrapping around to sector 0 (skipping
// reserved cluster IDs 0 and 1) if nothing is found before the end.
func (v *Volume) findFreeCluster(prevEndCluster ClusterID) (ClusterID, error) {
	startSector, _ := fatEntryLocation(prevEndCluster)
	totalSectors := (v.sectorsPerFAT)

	sector := make([]byte, block.SectorSize)

	scan := func(sectorIndex uint32, firstEntry uint32) (ClusterID, bool, error) {
		if err := v.cache.Read(sectorIndex, sector); err != nil {
			return 0, false, errors.ErrIO.WrapError(err)
		}
		for entry := firstEntry; entry < entriesPerFATSector; entry++ {
			value := binary.LittleEndian.Uint32(sector[entry*4:]) & uint32(ClusterIDMask)
			if value == uint32(FreeCluster) {
				cluster := ClusterID(sectorIndex*entriesPerFATSector + entry)
				if cluster < FirstValidCluster {
					continue
				}
				return cluster, true, nil
			}
		}
		return 0, false, nil
	}

	for s := startSector; s < totalSectors; s++ {
		if cluster, found, err := scan(s, 0); err != nil {
			return 0, err
		} else if found {
			return cluster, nil
		}
	}
	for s := uint32(0); s < startSector; s++ {
		if cluster, found, err := scan(s, 0); err != nil {
			return 0, err
		} else if found {
			return cluster, nil
		}
	}

	return 0, errors.ErrNoSpace
}

// Truncate implements truncate(keep_last, delete_flag): marks keepLast as
// the end of its chain (or frees it too, when deleteLast is set) and frees
// every cluster following it.
func (v *Volume) Truncate(keepLast ClusterID, deleteLast bool) error {
	next, err := v.readFATEntry(keepLast)
	if err != nil {
		return err
	}

	if deleteLast {
		if err := v.writeFATEntry(keepLast, FreeCluster); err != nil {
			return err
		}
	} else {
		if err := v.writeFATEntry(keepLast, EndOfChainMarker); err != nil {
			return err
		}
	}

	for !IsEndOfChain(next) {
		current := next
		next, err = v.readFATEntry(current)
		if err != nil {
			return err
		}
		if err := v.writeFATEntry(current, FreeCluster); err != nil {
			return err
		}
	}

	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Raw cluster transfer

// TransferCluster implements transfer_cluster(c, count, buffer, write):
// translates to transfer(cluster_to_lba(c), count*sectors_per_cluster,
// buffer, write). Rejects c < 2 or count < 1.
func (v *Volume) TransferCluster(c ClusterID, count uint32, buffer []byte, write bool) error {
	if count < 1 {
		return errors.ErrInvalid.WithMessage("cluster transfer count must be >= 1")
	}
	lba, err := v.clusterToLBA(c)
	if err != nil {
		return err
	}
	if err := v.dev.Transfer(lba, count*v.sectorsPerCluster, buffer, write); err != nil {
		return errors.ErrIO.WrapError(err)
	}
	return nil
}

// ReadCluster reads one full cluster of c into a newly allocated buffer.
func (v *Volume) ReadCluster(c ClusterID) ([]byte, error) {
	buffer := make([]byte, v.bytesPerCluster)
	if err := v.TransferCluster(c, 1, buffer, false); err != nil {
		return nil, err
	}
	return buffer, nil
}

// WriteCluster writes buffer (exactly one cluster) to c.
func (v *Volume) WriteCluster(c ClusterID, buffer []byte) error {
	return v.TransferCluster(c, 1, buffer, true)
}
