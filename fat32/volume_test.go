package fat32_test

import (
	"testing"

	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountCompact(t *testing.T, totalDataClusters uint32) (*fat32.Volume, *fixtures.Builder) {
	t.Helper()
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, totalDataClusters)
	require.NoError(t, builder.WriteRootDirectory(nil))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)
	return vol, builder
}

func TestMountReadsGeometry(t *testing.T) {
	vol, _ := mountCompact(t, 8)
	assert.EqualValues(t, 2, vol.RootDirCluster())
	assert.EqualValues(t, 512, vol.BytesPerCluster())
}

func TestClusterChainWalk(t *testing.T) {
	vol, builder := mountCompact(t, 8)

	builder.SetFATEntry(2, 3)
	builder.SetFATEntry(3, 0x0FFFFFFF)

	next, err := vol.NextCluster(2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, next)

	end, err := vol.NextCluster(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, end)
}

func TestExtendAllocatesFreeClusterAndZeroesIt(t *testing.T) {
	vol, builder := mountCompact(t, 8)
	builder.SetFATEntry(2, 0x0FFFFFFF)

	next, err := vol.Extend(fat32.ClusterID(2))
	require.NoError(t, err)
	assert.EqualValues(t, 3, next)

	data, err := vol.ReadCluster(next)
	require.NoError(t, err)
	for _, b := range data {
		assert.EqualValues(t, 0, b)
	}

	followUp, err := vol.NextCluster(2)
	require.NoError(t, err)
	assert.Equal(t, next, followUp)
}

func TestExtendFailsWhenNotAtChainEnd(t *testing.T) {
	vol, builder := mountCompact(t, 8)
	builder.SetFATEntry(2, 3)

	_, err := vol.Extend(fat32.ClusterID(2))
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestExtendFailsOutOfSpace(t *testing.T) {
	vol, builder := mountCompact(t, 8)
	builder.SetFATEntry(2, 0x0FFFFFFF)
	// "compact" has 4 FAT sectors * 128 entries/sector = 512 total FAT
	// entries (clusters 0-511); fill every one of them to exhaust the FAT
	// regardless of how many clusters the image actually backs with data.
	builder.FillFATExcept(512, map[uint32]bool{})

	_, err := vol.Extend(fat32.ClusterID(2))
	assert.ErrorIs(t, err, errors.ErrNoSpace)
}

func TestTruncateFreesChainTail(t *testing.T) {
	vol, builder := mountCompact(t, 8)
	builder.SetFATEntry(2, 3)
	builder.SetFATEntry(3, 4)
	builder.SetFATEntry(4, 0x0FFFFFFF)

	require.NoError(t, vol.Truncate(fat32.ClusterID(2), false))

	next, err := vol.NextCluster(2)
	require.NoError(t, err)
	assert.EqualValues(t, 0, next)

	freedEntry, err := vol.Extend(fat32.ClusterID(2))
	require.NoError(t, err)
	// 3 was freed by Truncate and is the lowest free cluster, so Extend
	// reclaims it first.
	assert.EqualValues(t, 3, freedEntry)
}

func TestTransferClusterRoundTrip(t *testing.T) {
	vol, _ := mountCompact(t, 8)

	payload := make([]byte, vol.BytesPerCluster())
	for i := range payload {
		payload[i] = byte(i)
	}

	require.NoError(t, vol.WriteCluster(fat32.ClusterID(5), payload))
	readBack, err := vol.ReadCluster(fat32.ClusterID(5))
	require.NoError(t, err)
	assert.Equal(t, payload, readBack)
}
