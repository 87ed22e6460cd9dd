package fat32_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mistfs/corefs"
	"github.com/mistfs/corefs/errors"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDefaultImage wires up the "default" geometry (partition LBA 2048, 32
// reserved sectors, 2 FATs, 1000 sectors/FAT, 8 sectors/cluster, root
// cluster 2) with one root entry.
func buildDefaultImage(t *testing.T, totalDataClusters uint32, entry fixtures.Entry, chain []uint32, content []byte) *fat32.Volume {
	t.Helper()
	geom, err := fixtures.GetGeometry("default")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, totalDataClusters)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{entry}))
	builder.WriteClusterChainData(chain, content)

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)
	return vol
}

func TestMountAndListHelloWorld(t *testing.T) {
	content := []byte("hello world")
	vol := buildDefaultImage(t, 2,
		fixtures.Entry{ShortName: "HELLO.TXT", FirstCluster: 3, Size: uint32(len(content))},
		[]uint32{3}, content)

	file, err := vol.OpenFile("/HELLO.TXT", corefs.O_RDONLY)
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(buf[:11]))

	n, err = file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	file.Close()
}

func TestLFNResolution(t *testing.T) {
	vol := buildDefaultImage(t, 2,
		fixtures.Entry{
			ShortName:    "LONGER~1.TOM",
			LongName:     "Longer-Name-Too.toml",
			FirstCluster: 3,
			Size:         5,
		},
		[]uint32{3}, []byte("hello"))

	file, err := vol.OpenFile("/longer-name-too.toml", corefs.O_RDONLY)
	require.NoError(t, err)
	defer file.Close()

	buf := make([]byte, 5)
	n, err := file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCrossClusterRead(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 20000)
	chain := []uint32{3, 4, 5, 6, 7}
	vol := buildDefaultImage(t, 6,
		fixtures.Entry{ShortName: "BIG.BIN", FirstCluster: 3, Size: uint32(len(content))},
		chain, content)

	file, err := vol.OpenFile("/BIG.BIN", corefs.O_RDONLY)
	require.NoError(t, err)
	defer file.Close()

	expectedLengths := []int{4096, 4096, 4096, 4096, 3616, 0}
	buf := make([]byte, 8192)
	for _, want := range expectedLengths {
		n, err := file.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestAppendWrite(t *testing.T) {
	vol := buildDefaultImage(t, 2,
		fixtures.Entry{ShortName: "LOG.TXT", FirstCluster: 3, Size: 3},
		[]uint32{3}, []byte("abc"))

	file, err := vol.OpenFile("/LOG.TXT", corefs.O_WRONLY|corefs.O_APPEND)
	require.NoError(t, err)
	n, err := file.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	file.Close()

	reopened, err := vol.OpenFile("/LOG.TXT", corefs.O_RDONLY)
	require.NoError(t, err)
	defer reopened.Close()

	end, err := reopened.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 8, end)

	_, err = reopened.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err = reopened.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "abcdefgh", string(buf))
}

func TestTruncateAndGrow(t *testing.T) {
	original := bytes.Repeat([]byte{0xCD}, 20000)
	chain := []uint32{3, 4, 5, 6, 7}
	vol := buildDefaultImage(t, 6,
		fixtures.Entry{ShortName: "DATA.BIN", FirstCluster: 3, Size: uint32(len(original))},
		chain, original)

	file, err := vol.OpenFile("/DATA.BIN", corefs.O_WRONLY|corefs.O_TRUNC)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{0xEF}, 6000)
	written := 0
	for written < len(payload) {
		// Write never spans more than one cluster per call; drain it the
		// way the syscall facade would.
		n, err := file.Write(payload[written:])
		require.NoError(t, err)
		require.Greater(t, n, 0)
		written += n
	}
	assert.Equal(t, 6000, written)
	file.Close()

	reopened, err := vol.OpenFile("/DATA.BIN", corefs.O_RDONLY)
	require.NoError(t, err)
	defer reopened.Close()

	end, err := reopened.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 6000, end)

	reachable := 1
	current, err := vol.NextCluster(fat32.ClusterID(3))
	require.NoError(t, err)
	for current != 0 {
		reachable++
		current, err = vol.NextCluster(current)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, reachable)
}

func TestOutOfSpace(t *testing.T) {
	geom, err := fixtures.GetGeometry("smallfat")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, 4)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "X.BIN", FirstCluster: 3, Size: 0},
	}))
	// Root directory cluster (2) and the file's own first cluster (3) are
	// both marked end-of-chain (allocated, not free); cluster 4 is the only
	// free entry left for Extend to find.
	builder.FillFATExcept(128, map[uint32]bool{4: true})

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	file, err := vol.OpenFile("/X.BIN", corefs.O_WRONLY)
	require.NoError(t, err)
	defer file.Close()

	firstCluster := make([]byte, vol.BytesPerCluster())
	n, err := file.Write(firstCluster)
	require.NoError(t, err)
	assert.EqualValues(t, vol.BytesPerCluster(), n)

	secondCluster := make([]byte, vol.BytesPerCluster())
	n, err = file.Write(secondCluster)
	require.NoError(t, err)
	assert.EqualValues(t, vol.BytesPerCluster(), n)

	_, err = file.Write(make([]byte, vol.BytesPerCluster()))
	assert.ErrorIs(t, err, errors.ErrNoSpace)
}
