package resource

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"commitlog/internal/segment"
)

func openTestSegment(t *testing.T, dir string, baseOffset int64) *segment.Segment {
	t.Helper()
	seg, err := segment.NewSegment(dir, baseOffset, segment.Config{
		SegmentMaxBytes:    4096,
		IndexMaxBytes:      4096,
		IndexIntervalBytes: 64,
	}, nil)
	require.NoError(t, err)
	return seg
}

func TestSegmentCache_GetOrLoad_CachesOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	cache := NewSegmentCache(2)
	defer cache.Close()

	loads := 0
	loader := func() (*segment.Segment, error) {
		loads++
		return openTestSegment(t, dir, 0), nil
	}

	first, err := cache.GetOrLoad("0", loader)
	require.NoError(t, err)
	second, err := cache.GetOrLoad("0", loader)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, loads)
}

func TestSegmentCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	cache := NewSegmentCache(1)
	defer cache.Close()

	_, err := cache.GetOrLoad("0", func() (*segment.Segment, error) {
		return openTestSegment(t, dir, 0), nil
	})
	require.NoError(t, err)

	loads := 0
	_, err = cache.GetOrLoad(fmt.Sprintf("%020d", 4096), func() (*segment.Segment, error) {
		loads++
		return openTestSegment(t, dir, 4096), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, loads)

	require.Equal(t, 1, cache.lruList.Len())
}
