package blockid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushResult_SecondCallIsLoggedNotPanicked(t *testing.T) {
	p := New(FileSource{R: sliceReaderAtStub{}, Sz: 0}, 512)

	var logged []string
	p.Logger = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	first := FilesystemResultOf(FilesystemResult{Type: BlockTypeExt4})
	second := FilesystemResultOf(FilesystemResult{Type: BlockTypeExt3})

	require.NotPanics(t, func() {
		p.pushResult("first-detector", first)
		p.pushResult("second-detector", second)
	})

	require.True(t, p.resultSet)
	require.Equal(t, BlockTypeExt4, p.result.Filesystem.Type, "first result must win")
	require.Len(t, logged, 1)
	require.Contains(t, logged[0], "second-detector")
}

type sliceReaderAtStub struct{}

func (sliceReaderAtStub) ReadAt(p []byte, off int64) (int, error) { return 0, nil }
