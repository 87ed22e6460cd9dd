package fat32

import (
	"encoding/binary"
)

// DirEntrySize is the fixed size of one on-disk directory entry.
const DirEntrySize = 32

// Directory entry attribute bits.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	// AttrLongName marks an entry as an LFN slot rather than a real
	// directory entry; it is the OR of the read-only, hidden, system and
	// volume-ID bits.
	AttrLongName = 0x0F
)

const (
	directoryEntryFreeMarker      = 0x00
	directoryEntryTombstoneMarker = 0xE5
)

// DirEntry is an owned, value-type copy of one on-disk 32-byte directory
// entry, together with its long name if one was assembled from preceding
// LFN slots. It is always a value, never a pointer into the walker's
// shared scratch buffer, so it stays valid past the next directory scan.
type DirEntry struct {
	ShortName    string // the raw 8.3 name, e.g. "LONGER~1.TOM"
	LongName     string // "" if no LFN slots preceded this entry
	Attr         uint8
	FirstCluster ClusterID
	Size         uint32

	// ClusterID and Index locate the entry within its parent directory's
	// cluster chain, so callers (close(), primarily) can write it back.
	ClusterID ClusterID
	Index     int
}

func (e DirEntry) IsDirectory() bool {
	return e.Attr&AttrDirectory != 0
}

// Name returns the long name if present, otherwise the short name.
func (e DirEntry) Name() string {
	if e.LongName != "" {
		return e.LongName
	}
	return e.ShortName
}

// parseRawDirEntry decodes the 32 bytes at buf into their fields without
// interpreting name/LFN semantics; used by the walker's read-only scan. (The
// file layer's size rewrite at close patches the size bytes directly.)
type rawDirEntry struct {
	name         [8]byte
	ext          [3]byte
	attr         uint8
	caseFlags    uint8
	clusterHi    uint16
	clusterLo    uint16
	size         uint32
	createdTime  [12]byte // bytes 0x0D-0x18, opaque here: only the LFN
	                      // assembler below cares about their raw bytes
}

func parseRawDirEntry(buf []byte) rawDirEntry {
	var e rawDirEntry
	copy(e.name[:], buf[0:8])
	copy(e.ext[:], buf[8:11])
	e.attr = buf[0x0B]
	e.caseFlags = buf[0x0C]
	e.clusterHi = binary.LittleEndian.Uint16(buf[0x14:])
	e.clusterLo = binary.LittleEndian.Uint16(buf[0x1A:])
	e.size = binary.LittleEndian.Uint32(buf[0x1C:])
	copy(e.createdTime[:], buf[0x0D:0x19])
	return e
}

func (e rawDirEntry) firstCluster() ClusterID {
	return ClusterID(uint32(e.clusterHi)<<16 | uint32(e.clusterLo))
}

// shortName rebuilds the displayable 8.3 name: trailing spaces trimmed from
// the 8-byte name, and for non-directories a '.' plus the trimmed 3-byte
// extension appended when the extension is non-empty.
func (e rawDirEntry) shortName() string {
	name := trimTrailingSpaces(e.name[:])
	if e.attr&AttrDirectory != 0 {
		return name
	}
	ext := trimTrailingSpaces(e.ext[:])
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func trimTrailingSpaces(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

////////////////////////////////////////////////////////////////////////////////
// LFN assembly: each 32-byte LFN slot contributes 13 UCS-2 characters taken
// from three byte ranges -- name[1..10] (5 chars), the "created_time"
// 12-byte span (6 chars), and the "size" 4-byte span (2 chars) -- assembled
// back to front because slots precede their 8.3 entry in descending
// sequence-number order.

const (
	lfnFirstEntryBit  = 0x40
	lfnSequenceMask   = 0x1F
	lfnCharsPerSlot   = 13
	lfnBytesPerSlot   = 26
	maxLongNameChars  = 255
)

// lfnAccumulator assembles a long name from a run of LFN slots encountered
// in on-disk (reverse logical) order.
type lfnAccumulator struct {
	buf   [maxLongNameChars * 2]byte
	pos   int // byte offset of the leftmost character written so far
	valid bool
}

func newLFNAccumulator() *lfnAccumulator {
	a := &lfnAccumulator{}
	a.reset()
	return a
}

func (a *lfnAccumulator) reset() {
	a.pos = len(a.buf)
	a.valid = false
}

// addSlot folds one LFN directory-entry slot into the accumulator. buf is
// the raw 32 bytes of the slot.
func (a *lfnAccumulator) addSlot(buf []byte) (complete bool) {
	sequence := buf[0]
	if sequence&lfnFirstEntryBit != 0 {
		a.reset()
	}

	a.pos -= lfnBytesPerSlot
	if a.pos < 0 {
		// Pathological slot count; bail out rather than panic.
		a.reset()
		return false
	}

	copy(a.buf[a.pos:a.pos+10], buf[1:11])
	copy(a.buf[a.pos+10:a.pos+22], buf[14:26])
	copy(a.buf[a.pos+22:a.pos+26], buf[28:32])

	if sequence&^lfnFirstEntryBit&lfnSequenceMask == 1 {
		a.valid = true
		return true
	}
	return false
}

// text returns the assembled long name as an ASCII string, case-folded to
// upper case for comparison purposes. Characters outside ASCII are not
// representable by this core's path-matching rules (only ASCII token
// comparison is supported) and cause the LFN to be treated as non-matching
// by the caller rather than producing mojibake.
func (a *lfnAccumulator) text() (name string, pureASCII bool) {
	runes := make([]byte, 0, maxLongNameChars)
	for i := a.pos; i+1 < len(a.buf); i += 2 {
		low, high := a.buf[i], a.buf[i+1]
		if low == 0 && high == 0 {
			break
		}
		if high != 0 || low > 0x7F {
			return "", false
		}
		runes = append(runes, low)
	}
	return string(runes), true
}
