package fixtures

import (
	"encoding/binary"
	"strings"

	"github.com/mistfs/corefs/block"
	"github.com/noxer/bytewriter"
)

// Entry describes one file or directory to place in a synthetic image's
// root directory.
type Entry struct {
	// ShortName is the 8.3 name, e.g. "HELLO.TXT" or "LONGER~1.TOM". A '.'
	// separates name from extension; omit it for directories.
	ShortName string
	// LongName, if set, is emitted as a run of LFN slots preceding the
	// short entry.
	LongName     string
	IsDir        bool
	FirstCluster uint32
	Size         uint32
}

// onDiskEntry mirrors the 32-byte layout fat32.rawDirEntry parses, used
// here only to serialize fixtures -- not shared with the production code,
// since a fixture builder constructing bytes and a driver parsing them are
// different concerns even though the layout is identical.
type onDiskEntry struct {
	Name         [8]byte
	Ext          [3]byte
	Attr         uint8
	CaseFlags    uint8
	CreatedMs    uint8
	CreatedTime  uint16
	CreatedDate  uint16
	AccessedDate uint16
	ClusterHi    uint16
	ModifiedTime uint16
	ModifiedDate uint16
	ClusterLo    uint16
	Size         uint32
}

type lfnSlot struct {
	Sequence  uint8
	Name1     [10]byte
	Attr      uint8
	Type      uint8
	Checksum  uint8
	Name2     [12]byte
	ClusterLo uint16
	Name3     [4]byte
}

const (
	attrDirectory = 0x10
	attrLongName  = 0x0F
	lfnFirstBit   = 0x40
)

// Builder assembles a synthetic FAT32 image byte-by-byte using bytewriter
// for the sequential parts (directory entries, file content), the same
// idiom file_systems/unixv1/format.go uses to build a Unix v1 image.
type Builder struct {
	geom    Geometry
	storage []byte
}

// NewBuilder allocates a zeroed image with room for totalDataClusters
// clusters past the BPB/FAT region, writes the MBR and BPB, and leaves
// every cluster (including the root directory's) zeroed -- an all-zero
// directory cluster is already a valid "end of directory" marker.
func NewBuilder(geom Geometry, totalDataClusters uint32) *Builder {
	totalSectors := geom.DataStartLBA() + totalDataClusters*uint32(geom.SectorsPerCluster)
	storage := make([]byte, uint64(totalSectors)*block.SectorSize)

	b := &Builder{geom: geom, storage: storage}
	b.writeMBR()
	b.writeBPB()
	return b
}

func (b *Builder) writeMBR() {
	sector := b.storage[0:block.SectorSize]
	entry := sector[0x1BE : 0x1BE+16]
	entry[0x04] = 0x0C // FAT32-LBA
	binary.LittleEndian.PutUint32(entry[0x08:], b.geom.PartitionStartLBA)
	binary.LittleEndian.PutUint32(entry[0x0C:], b.geom.DataStartLBA()-b.geom.PartitionStartLBA)
	sector[0x1FE] = 0x55
	sector[0x1FF] = 0xAA
}

func (b *Builder) writeBPB() {
	offset := uint64(b.geom.PartitionStartLBA) * block.SectorSize
	sector := b.storage[offset : offset+block.SectorSize]
	binary.LittleEndian.PutUint16(sector[0x0B:], block.SectorSize)
	sector[0x0D] = b.geom.SectorsPerCluster
	binary.LittleEndian.PutUint16(sector[0x0E:], b.geom.ReservedSectors)
	sector[0x10] = b.geom.NumFATs
	binary.LittleEndian.PutUint32(sector[0x24:], b.geom.SectorsPerFAT)
	binary.LittleEndian.PutUint32(sector[0x2C:], b.geom.RootDirCluster)
}

// Device returns a block.Device backed by the image built so far.
func (b *Builder) Device() *block.MemoryDevice {
	return block.NewMemoryDevice(b.storage)
}

// clusterBytes returns the byte range of cluster c within the backing
// storage.
func (b *Builder) clusterBytes(c uint32) []byte {
	startLBA := b.geom.ClusterLBA(c)
	offset := uint64(startLBA) * block.SectorSize
	length := uint64(b.geom.BytesPerCluster())
	return b.storage[offset : offset+length]
}

// SetFATEntry writes value directly into cluster c's FAT entry (in the
// first FAT copy only, matching this core's single-copy semantics).
func (b *Builder) SetFATEntry(c uint32, value uint32) {
	sectorIndex := c / 128
	byteOffset := (c % 128) * 4
	lba := b.geom.FATStartLBA() + sectorIndex
	offset := uint64(lba)*block.SectorSize + uint64(byteOffset)
	binary.LittleEndian.PutUint32(b.storage[offset:], value&0x0FFFFFFF)
}

// FillFATExcept marks every cluster in [2, totalClusters) as in-use
// (end-of-chain, an arbitrary non-zero value) except those listed in free,
// used to build out-of-space scenarios where only specific clusters remain
// free.
func (b *Builder) FillFATExcept(totalClusters uint32, free map[uint32]bool) {
	for c := uint32(2); c < totalClusters; c++ {
		if free[c] {
			b.SetFATEntry(c, 0)
		} else {
			b.SetFATEntry(c, 0x0FFFFFFF)
		}
	}
}

// WriteClusterData writes data (truncated or zero-padded to exactly one
// cluster) into cluster c.
func (b *Builder) WriteClusterData(c uint32, data []byte) {
	dest := b.clusterBytes(c)
	for i := range dest {
		dest[i] = 0
	}
	copy(dest, data)
}

// WriteClusterChainData splits data across the cluster chain starting at
// chain[0], one cluster's worth at a time, and marks the FAT chain
// accordingly (end-of-chain on the last cluster). The caller supplies the
// full chain of cluster IDs in order.
func (b *Builder) WriteClusterChainData(chain []uint32, data []byte) {
	bytesPerCluster := int(b.geom.BytesPerCluster())
	for i, cluster := range chain {
		start := i * bytesPerCluster
		end := start + bytesPerCluster
		var chunk []byte
		if start < len(data) {
			if end > len(data) {
				end = len(data)
			}
			chunk = data[start:end]
		}
		b.WriteClusterData(cluster, chunk)

		if i == len(chain)-1 {
			b.SetFATEntry(cluster, 0x0FFFFFFF)
		} else {
			b.SetFATEntry(cluster, chain[i+1])
		}
	}
}

// WriteRootDirectory serializes entries into the root directory's cluster.
func (b *Builder) WriteRootDirectory(entries []Entry) error {
	return b.WriteDirectory(b.geom.RootDirCluster, entries)
}

// WriteDirectory serializes entries into cluster, in order, using
// bytewriter the way format.go sequentially serializes a Unix v1 image's
// metadata region. Used for the root directory and for any subdirectory a
// test builds by hand.
func (b *Builder) WriteDirectory(cluster uint32, entries []Entry) error {
	dest := b.clusterBytes(cluster)
	for i := range dest {
		dest[i] = 0
	}

	writer := bytewriter.New(dest)
	for _, entry := range entries {
		if entry.LongName != "" {
			if err := writeLFNSlots(writer, entry.LongName); err != nil {
				return err
			}
		}
		if err := writeShortEntry(writer, entry); err != nil {
			return err
		}
	}
	return nil
}

func writeShortEntry(w *bytewriter.Writer, entry Entry) error {
	name, ext := splitShortName(entry.ShortName)
	attr := uint8(0)
	if entry.IsDir {
		attr = attrDirectory
	}

	onDisk := onDiskEntry{
		Attr:      attr,
		ClusterHi: uint16(entry.FirstCluster >> 16),
		ClusterLo: uint16(entry.FirstCluster & 0xFFFF),
		Size:      entry.Size,
	}
	copy(onDisk.Name[:], padRight(name, 8))
	copy(onDisk.Ext[:], padRight(ext, 3))

	return binary.Write(w, binary.LittleEndian, &onDisk)
}

// writeLFNSlots emits ceil(len(name)/13) slots in descending sequence
// order, the way they appear on disk: the *last* slot logically (highest
// sequence number, FIRST-ENTRY bit set) is written *first*, and the slot
// with sequence number 1 is written last, immediately before the short
// entry that follows in physical order. LFN slots
// always precede their 8.3 entry in reverse sequence order.
func writeLFNSlots(w *bytewriter.Writer, name string) error {
	chars := []uint16{}
	for _, r := range name {
		chars = append(chars, uint16(r))
	}

	const charsPerSlot = 13
	slotCount := (len(chars) + charsPerSlot - 1) / charsPerSlot
	if slotCount == 0 {
		slotCount = 1
	}

	for i := slotCount - 1; i >= 0; i-- {
		start := i * charsPerSlot
		end := start + charsPerSlot
		var slotChars [charsPerSlot]uint16
		for j := range slotChars {
			slotChars[j] = 0xFFFF
		}
		for j := start; j < end && j < len(chars); j++ {
			slotChars[j-start] = chars[j]
		}
		if end >= len(chars) && len(chars)%charsPerSlot != 0 {
			// Null-terminate immediately after the last real character.
			slotChars[len(chars)-start] = 0x0000
		}

		sequence := uint8(i + 1)
		if i == slotCount-1 {
			sequence |= lfnFirstBit
		}

		slot := lfnSlot{Sequence: sequence, Attr: attrLongName}
		for j := 0; j < 5; j++ {
			putUint16(slot.Name1[j*2:], slotChars[j])
		}
		for j := 0; j < 6; j++ {
			putUint16(slot.Name2[j*2:], slotChars[5+j])
		}
		for j := 0; j < 2; j++ {
			putUint16(slot.Name3[j*2:], slotChars[11+j])
		}

		if err := binary.Write(w, binary.LittleEndian, &slot); err != nil {
			return err
		}
	}
	return nil
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func splitShortName(shortName string) (name, ext string) {
	parts := strings.SplitN(shortName, ".", 2)
	name = strings.ToUpper(parts[0])
	if len(parts) == 2 {
		ext = strings.ToUpper(parts[1])
	}
	return name, ext
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}
