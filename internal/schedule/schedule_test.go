package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestService_DurationForLevel(t *testing.T) {
	s := New()

	d, ok := s.DurationForLevel(1)
	require.True(t, ok)
	require.Equal(t, time.Second, d)

	_, ok = s.DurationForLevel(0)
	require.False(t, ok)

	_, ok = s.DurationForLevel(s.MaxDelayLevel() + 1)
	require.False(t, ok)
}

func TestService_ComputeDeliverTimestamp(t *testing.T) {
	s := New()
	base := int64(1_700_000_000_000)

	got := s.ComputeDeliverTimestamp(1, base)
	require.Equal(t, base+1000, got)

	// An out-of-range level leaves the timestamp untouched.
	got = s.ComputeDeliverTimestamp(999, base)
	require.Equal(t, base, got)
}

func TestService_ResolveTagsCode(t *testing.T) {
	s := New()
	base := int64(1_700_000_000_000)

	// queueID 2 means delayLevel 3 (10s), per the Append Engine's rewrite.
	require.EqualValues(t, base+10_000, s.ResolveTagsCode(2, base))

	// An out-of-range level leaves the timestamp untouched.
	require.EqualValues(t, base, s.ResolveTagsCode(999, base))
}
