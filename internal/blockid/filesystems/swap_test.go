package filesystems

import (
	"testing"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/stretchr/testify/require"
)

func TestProbeSwapV1_PageSizeDerivedFromMagicPosition(t *testing.T) {
	img := make([]byte, 32*1024)
	copy(img[0x7FF6:], []byte(swapV1Magic))

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{LinuxSwapV1Idinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeLinuxSwapV1, r.Filesystem.Type)
	require.NotNil(t, r.Filesystem.FSBlockSize)
	require.Equal(t, uint64(0x7FF6+len(swapV1Magic)), *r.Filesystem.FSBlockSize)
}

func TestProbeSwsuspend_PageSizeDerivedFromMagicPosition(t *testing.T) {
	img := make([]byte, 16*1024)
	copy(img[0x3FF6:], []byte(swsuspendMagic))

	src := blockid.FileSource{R: byteSliceReaderAt(img), Sz: int64(len(img))}
	p := blockid.New(src, 512)
	r, err := p.RunRegistry([]blockid.Idinfo{SwsuspendIdinfo})
	require.NoError(t, err)
	require.Equal(t, blockid.BlockTypeSwapSuspend, r.Filesystem.Type)
	require.NotNil(t, r.Filesystem.FSBlockSize)
	require.Equal(t, uint64(0x3FF6+len(swsuspendMagic)), *r.Filesystem.FSBlockSize)
}
