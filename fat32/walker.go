package fat32

import (
	"strings"

	"github.com/mistfs/corefs/errors"
)

// Resolve implements directory-path resolution: it resolves a
// `/`-delimited path against the root directory and returns the matching
// entry as an owned value, plus the cluster/index coordinates needed to
// rewrite it.
//
// The walk is iterative over path components and never mutates path; a
// leading `/` is stripped and each component is upper-cased for comparison.
func (v *Volume) Resolve(path string) (DirEntry, error) {
	tokens := tokenizePath(path)
	if len(tokens) == 0 {
		return DirEntry{
			Attr:         AttrDirectory,
			FirstCluster: v.rootDirStartCluster,
			ClusterID:    v.rootDirStartCluster,
			Index:        -1,
		}, nil
	}

	currentCluster := v.rootDirStartCluster

	for i, token := range tokens {
		entry, err := v.scanDirectory(currentCluster, token)
		if err != nil {
			return DirEntry{}, err
		}

		isLastToken := i == len(tokens)-1
		if isLastToken {
			return entry, nil
		}

		if !entry.IsDirectory() {
			return DirEntry{}, errors.ErrNotADirectory.WithMessage(token)
		}
		currentCluster = entry.FirstCluster
	}

	// Unreachable: len(tokens) > 0 guarantees the loop returns.
	return DirEntry{}, errors.ErrNotFound
}

// tokenizePath strips a leading slash and splits the remainder on `/`,
// dropping empty components (so "a//b/" and "a/b" are equivalent), and
// upper-cases each token for 8.3 comparison. It never modifies the caller's
// string -- Go strings are immutable, so this is automatic, but the
// value-returning shape keeps that guarantee explicit.
func tokenizePath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	rawParts := strings.Split(trimmed, "/")

	tokens := make([]string, 0, len(rawParts))
	for _, part := range rawParts {
		if part == "" {
			continue
		}
		tokens = append(tokens, strings.ToUpper(part))
	}
	return tokens
}

// scanDirectory reads the directory table starting at startCluster, one
// cluster at a time, following the FAT chain across cluster boundaries,
// looking for an entry whose name (LFN if present, else 8.3) equals token.
func (v *Volume) scanDirectory(startCluster ClusterID, token string) (DirEntry, error) {
	cluster := startCluster
	acc := newLFNAccumulator()
	entriesPerCluster := int(v.bytesPerCluster) / DirEntrySize

	for {
		if err := v.TransferCluster(cluster, 1, v.scratch, false); err != nil {
			return DirEntry{}, err
		}

		for index := 0; index < entriesPerCluster; index++ {
			buf := v.scratch[index*DirEntrySize : (index+1)*DirEntrySize]

			switch buf[0] {
			case directoryEntryFreeMarker:
				return DirEntry{}, errors.ErrNotFound
			case directoryEntryTombstoneMarker:
				acc.reset()
				continue
			}

			attr := buf[0x0B]
			if attr == AttrLongName {
				acc.addSlot(buf)
				continue
			}
			if attr&AttrVolumeID != 0 {
				acc.reset()
				continue
			}

			raw := parseRawDirEntry(buf)
			matched := v.entryMatchesToken(raw, acc, token)
			longName := matchedLongName(acc)
			acc.reset()

			if matched {
				return DirEntry{
					ShortName:    raw.shortName(),
					LongName:     longName,
					Attr:         raw.attr,
					FirstCluster: raw.firstCluster(),
					Size:         raw.size,
					ClusterID:    cluster,
					Index:        index,
				}, nil
			}
		}

		next, err := v.NextCluster(cluster)
		if err != nil {
			return DirEntry{}, err
		}
		if next == 0 {
			return DirEntry{}, errors.ErrNotFound
		}
		cluster = next
	}
}

// entryMatchesToken compares against the assembled LFN when one is present,
// otherwise against the rebuilt 8.3 name. An LFN with non-ASCII characters
// never matches; the 8.3 name is not tried in that case.
func (v *Volume) entryMatchesToken(raw rawDirEntry, acc *lfnAccumulator, token string) bool {
	if acc.valid {
		if name, pureASCII := acc.text(); pureASCII {
			return strings.ToUpper(name) == token
		}
		return false
	}
	return raw.shortName() == token
}

// matchedLongName recovers the display-form long name from the accumulator
// before scanDirectory resets it for the next entry.
func matchedLongName(acc *lfnAccumulator) string {
	if !acc.valid {
		return ""
	}
	name, ascii := acc.text()
	if !ascii {
		return ""
	}
	return name
}
