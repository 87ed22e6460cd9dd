package block_test

import (
	"testing"

	"github.com/mistfs/corefs/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceRoundTrip(t *testing.T) {
	storage := make([]byte, 4*block.SectorSize)
	device := block.NewMemoryDevice(storage)
	require.EqualValues(t, 4, device.TotalSectors())

	payload := make([]byte, block.SectorSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	require.NoError(t, device.Transfer(2, 1, payload, true))

	readBack := make([]byte, block.SectorSize)
	require.NoError(t, device.Transfer(2, 1, readBack, false))
	assert.Equal(t, payload, readBack)
}

func TestMemoryDeviceTransferPastEndFails(t *testing.T) {
	storage := make([]byte, 2*block.SectorSize)
	device := block.NewMemoryDevice(storage)
	buf := make([]byte, block.SectorSize)
	assert.Error(t, device.Transfer(2, 1, buf, false))
}

func TestMemoryDeviceBadBufferSizeFails(t *testing.T) {
	storage := make([]byte, 2*block.SectorSize)
	device := block.NewMemoryDevice(storage)
	buf := make([]byte, block.SectorSize-1)
	assert.Error(t, device.Transfer(0, 1, buf, false))
}
