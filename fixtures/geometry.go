// Package fixtures builds synthetic FAT32 images for tests and for the CLI's
// "mkimage" command, parameterized by a CSV-driven table of named volume
// geometries, the same way disks/disks.go drives disk-geometry lookups in
// the retrieved dargueta/disko reference.
package fixtures

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry describes one synthetic FAT32 volume layout: where its partition
// starts and how its BPB is laid out.
type Geometry struct {
	Name              string `csv:"name"`
	PartitionStartLBA uint32 `csv:"partition_start_lba"`
	ReservedSectors   uint16 `csv:"reserved_sectors"`
	NumFATs           uint8  `csv:"num_fats"`
	SectorsPerFAT     uint32 `csv:"sectors_per_fat"`
	SectorsPerCluster uint8  `csv:"sectors_per_cluster"`
	RootDirCluster    uint32 `csv:"root_dir_cluster"`
}

// BytesPerCluster returns 512 * SectorsPerCluster.
func (g Geometry) BytesPerCluster() uint32 {
	return 512 * uint32(g.SectorsPerCluster)
}

// FATStartLBA returns PartitionStartLBA + ReservedSectors.
func (g Geometry) FATStartLBA() uint32 {
	return g.PartitionStartLBA + uint32(g.ReservedSectors)
}

// DataStartLBA returns FATStartLBA() + SectorsPerFAT*NumFATs.
func (g Geometry) DataStartLBA() uint32 {
	return g.FATStartLBA() + g.SectorsPerFAT*uint32(g.NumFATs)
}

// ClusterLBA returns the LBA of the first sector of cluster c.
func (g Geometry) ClusterLBA(c uint32) uint32 {
	return g.DataStartLBA() + (c-2)*uint32(g.SectorsPerCluster)
}

// geometriesRawCSV is the built-in table of named geometries used across
// this module's tests. "default" is a realistic full-size layout (partition
// start LBA 2048, 32 reserved sectors, 2 FATs, 1000 sectors/FAT, 8
// sectors/cluster, root cluster 2). "compact" is a much smaller layout used
// by tests that don't need a multi-megabyte image and just want fast setup.
const geometriesRawCSV = `name,partition_start_lba,reserved_sectors,num_fats,sectors_per_fat,sectors_per_cluster,root_dir_cluster
default,2048,32,2,1000,8,2
compact,8,4,1,4,1,2
smallfat,8,4,1,1,1,2
`

var geometries map[string]Geometry

func init() {
	geometries = make(map[string]Geometry)
	reader := strings.NewReader(geometriesRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := geometries[row.Name]; exists {
			return fmt.Errorf("duplicate geometry definition %q", row.Name)
		}
		geometries[row.Name] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// GetGeometry returns the named built-in geometry.
func GetGeometry(name string) (Geometry, error) {
	geometry, ok := geometries[name]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined geometry named %q", name)
	}
	return geometry, nil
}
