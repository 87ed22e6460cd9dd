package posix_test

import (
	"io"
	"os"
	"testing"

	"github.com/mistfs/corefs"
	"github.com/mistfs/corefs/fat32"
	"github.com/mistfs/corefs/fixtures"
	"github.com/mistfs/corefs/posix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsole is a minimal posix.Console for tests: reads always return a
// fixed line, writes are recorded for inspection.
type fakeConsole struct {
	input   []byte
	written []byte
}

func (c *fakeConsole) ReadInput(buf []byte) (int, error) {
	n := copy(buf, c.input)
	return n, nil
}

func (c *fakeConsole) WriteOutput(fd int, buf []byte) (int, error) {
	c.written = append(c.written, buf...)
	return len(buf), nil
}

func mountFacade(t *testing.T) (*posix.Facade, *fakeConsole) {
	t.Helper()
	geom, err := fixtures.GetGeometry("default")
	require.NoError(t, err)

	builder := fixtures.NewBuilder(geom, 2)
	require.NoError(t, builder.WriteRootDirectory([]fixtures.Entry{
		{ShortName: "HELLO.TXT", FirstCluster: 3, Size: 11},
	}))
	builder.WriteClusterChainData([]uint32{3}, []byte("hello world"))

	vol, err := fat32.Mount(builder.Device(), fat32.MountOptions{})
	require.NoError(t, err)

	console := &fakeConsole{input: []byte("typed\n")}
	return posix.New(vol, console), console
}

func TestOpenReadCloseRoundTrip(t *testing.T) {
	facade, _ := mountFacade(t)

	fd, errno := facade.Open("/HELLO.TXT", corefs.O_RDONLY)
	require.Zero(t, errno)
	assert.GreaterOrEqual(t, fd, posix.ConsoleHandleCount)

	buf := make([]byte, 32)
	n, errno := facade.Read(fd, buf)
	require.Zero(t, errno)
	assert.Equal(t, "hello world", string(buf[:n]))

	assert.Zero(t, facade.Close(fd))
}

func TestOpenRejectsDiskPrefix(t *testing.T) {
	facade, _ := mountFacade(t)

	fd, errno := facade.Open("/disk0/whatever", corefs.O_RDONLY)
	assert.Equal(t, -1, fd)
	assert.NotZero(t, errno)
}

func TestReadWriteConsoleFds(t *testing.T) {
	facade, console := mountFacade(t)

	buf := make([]byte, 16)
	n, errno := facade.Read(0, buf)
	require.Zero(t, errno)
	assert.Equal(t, "typed\n", string(buf[:n]))

	n, errno = facade.Write(1, []byte("out"))
	require.Zero(t, errno)
	assert.Equal(t, 3, n)
	assert.Equal(t, "out", string(console.written))

	_, errno = facade.Read(1, buf)
	assert.NotZero(t, errno)

	_, errno = facade.Write(0, []byte("x"))
	assert.NotZero(t, errno)
}

func TestLseekFailsOnConsoleFds(t *testing.T) {
	facade, _ := mountFacade(t)

	for fd := 0; fd < posix.ConsoleHandleCount; fd++ {
		_, errno := facade.Lseek(fd, 0, io.SeekStart)
		assert.NotZero(t, errno)
	}
}

func TestFstatReportsCharDeviceForConsole(t *testing.T) {
	facade, _ := mountFacade(t)

	stat, errno := facade.Fstat(1)
	require.Zero(t, errno)
	assert.Equal(t, os.FileMode(corefs.S_IFCHR), stat.ModeFlags)

	fd, errno := facade.Open("/HELLO.TXT", corefs.O_RDONLY)
	require.Zero(t, errno)
	defer facade.Close(fd)

	stat, errno = facade.Fstat(fd)
	require.Zero(t, errno)
	assert.Equal(t, os.FileMode(corefs.S_IFREG), stat.ModeFlags)
}

func TestIsattyOnlyTrueForConsoleFds(t *testing.T) {
	facade, _ := mountFacade(t)

	assert.True(t, facade.Isatty(0))
	assert.True(t, facade.Isatty(2))

	fd, errno := facade.Open("/HELLO.TXT", corefs.O_RDONLY)
	require.Zero(t, errno)
	defer facade.Close(fd)
	assert.False(t, facade.Isatty(fd))
}

func TestCloseAndOperationsOnBadHandle(t *testing.T) {
	facade, _ := mountFacade(t)

	badFd := posix.ConsoleHandleCount + 5
	assert.NotZero(t, facade.Close(badFd))

	_, errno := facade.Read(badFd, make([]byte, 1))
	assert.NotZero(t, errno)
}
