package fat32_test

import (
	"testing"

	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveShortName(t *testing.T) {
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "HELLO.TXT", FirstCluster: 3, Size: 11},
	}))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	entry, err := vol.Resolve("/hello.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, entry.FirstCluster)
	assert.Equal(t, "HELLO.TXT", entry.ShortName)
}

func TestResolveLongName(t *testing.T) {
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "LONGER~1.TOM", LongName: "Longer-Name-Too.toml", FirstCluster: 3, Size: 5},
	}))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	entry, err := vol.Resolve("/longer-name-too.toml")
	require.NoError(t, err)
	assert.Equal(t, "Longer-Name-Too.toml", entry.LongName)
	assert.Equal(t, "Longer-Name-Too.toml", entry.Name())
}

func TestResolveNestedDirectory(t *testing.T) {
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "SUBDIR", IsDir: true, FirstCluster: 3},
	}))
	require.NoError(t, builder.WriteDirectory(3, []fixtures.Entry{
		{ShortName: "LEAF.TXT", FirstCluster: 4, Size: 4},
	}))
	builder.SetFATEntry(3, 0x0FFFFFFF)
	builder.WriteClusterChainData([]uint32{4}, []byte("leaf"))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	entry, err := vol.Resolve("/SUBDIR/LEAF.TXT")
	require.NoError(t, err)
	assert.EqualValues(t, 4, entry.FirstCluster)
}

func TestResolveNotFound(t *testing.T) {
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)
	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory(nil))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	_, err = vol.Resolve("/nope.txt")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestResolveNotADirectory(t *testing.T) {
	geom, err := fixtures.GetGeometry("compact")
	require.NoError(t, err)
	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "FILE.TXT", FirstCluster: 3, Size: 4},
	}))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	_, err = vol.Resolve("/FILE.TXT/NOPE")
	assert.ErrorIs(t, err, errors.ErrNotADirectory)
}
