// Package fatcache is a bounded read-through cache of FAT sectors: a
// fixed-size backing buffer plus two bitmaps tracking which sectors are
// resident and which are dirty. It exists because the cluster-chain walk
// (next_cluster, extend, truncate) re-reads the same handful of FAT sectors
// over and over.
//
// A cache with budget 0 is a pure passthrough: every read misses, every
// write flushes immediately. Correctness never depends on the cache being
// enabled.
package fatcache

import (
	"github.com/boljen/go-bitmap"
)

// FetchSector reads one FAT sector (bytesPerSector bytes) at sectorIndex
// (0-based, relative to the start of the FAT) into buffer.
type FetchSector func(sectorIndex uint32, buffer []byte) error

// FlushSector writes buffer back to sectorIndex.
type FlushSector func(sectorIndex uint32, buffer []byte) error

// slot is one cached FAT sector and the absolute sector index it holds.
type slot struct {
	sectorIndex uint32
	data        []byte
}

// Cache is a fixed-capacity cache of FAT sectors; any sector may occupy any
// slot, and slots are reused in round-robin order.
type Cache struct {
	fetch         FetchSector
	flush         FlushSector
	bytesPerSector uint

	capacity int
	loaded   bitmap.Bitmap
	dirty    bitmap.Bitmap
	slots    []slot
	// index maps a FAT sector index to its slot, when resident.
	index map[uint32]int
	// next is the slot to evict next, round-robin (FAT access is
	// overwhelmingly sequential, so round-robin behaves like LRU in
	// practice without the bookkeeping).
	next int
}

// New creates a Cache holding up to `capacity` FAT sectors of
// `bytesPerSector` bytes each. capacity == 0 disables caching: every Read
// calls fetch and every Write calls flush immediately.
func New(capacity int, bytesPerSector uint, fetch FetchSector, flush FlushSector) *Cache {
	c := &Cache{
		fetch:          fetch,
		flush:          flush,
		bytesPerSector: bytesPerSector,
		capacity:       capacity,
		index:          make(map[uint32]int, capacity),
	}
	if capacity > 0 {
		c.loaded = bitmap.NewSlice(capacity)
		c.dirty = bitmap.NewSlice(capacity)
		c.slots = make([]slot, capacity)
		for i := range c.slots {
			c.slots[i].data = make([]byte, bytesPerSector)
		}
	}
	return c
}

// Read copies the contents of FAT sector sectorIndex into out, which must be
// bytesPerSector bytes.
func (c *Cache) Read(sectorIndex uint32, out []byte) error {
	if c.capacity == 0 {
		return c.fetch(sectorIndex, out)
	}

	if slotIndex, found := c.index[sectorIndex]; found && c.loaded.Get(slotIndex) {
		copy(out, c.slots[slotIndex].data)
		return nil
	}

	slotIndex := c.claimSlot(sectorIndex)
	if err := c.fetch(sectorIndex, c.slots[slotIndex].data); err != nil {
		c.loaded.Set(slotIndex, false)
		delete(c.index, sectorIndex)
		return err
	}
	c.loaded.Set(slotIndex, true)
	c.dirty.Set(slotIndex, false)
	copy(out, c.slots[slotIndex].data)
	return nil
}

// Write updates FAT sector sectorIndex with in (bytesPerSector bytes) and
// flushes it immediately; the FAT is small and safety-critical enough that
// this core never defers a FAT write, only caches reads. Every write is
// visible to the very next read, by any reader.
func (c *Cache) Write(sectorIndex uint32, in []byte) error {
	if err := c.flush(sectorIndex, in); err != nil {
		return err
	}
	if c.capacity == 0 {
		return nil
	}

	slotIndex, found := c.index[sectorIndex]
	if !found {
		slotIndex = c.claimSlotForWrite(sectorIndex)
	}
	copy(c.slots[slotIndex].data, in)
	c.loaded.Set(slotIndex, true)
	c.dirty.Set(slotIndex, false)
	return nil
}

// claimSlot evicts (round-robin) a slot for sectorIndex and records the
// mapping, without touching its contents.
func (c *Cache) claimSlot(sectorIndex uint32) int {
	slotIndex := c.next
	c.next = (c.next + 1) % c.capacity

	if c.loaded.Get(slotIndex) {
		delete(c.index, c.slots[slotIndex].sectorIndex)
	}
	c.slots[slotIndex].sectorIndex = sectorIndex
	c.index[sectorIndex] = slotIndex
	return slotIndex
}

func (c *Cache) claimSlotForWrite(sectorIndex uint32) int {
	return c.claimSlot(sectorIndex)
}
