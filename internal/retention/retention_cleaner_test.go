package retention

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls   int32
	deleted int
}

func (f *fakeSource) DeleteExpiredByTime(maxAge time.Duration) int {
	atomic.AddInt32(&f.calls, 1)
	return f.deleted
}

func TestRetentionCleaner_Register(t *testing.T) {
	rc := NewRetentionCleaner(CleanerConfig{CheckInterval: time.Second, MaxAge: time.Hour}, clock.NewMock(), nil)
	src := &fakeSource{}
	rc.Register(src)

	require.Len(t, rc.sources, 1)
}

func TestRetentionCleaner_SweepsOnEachTick(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{deleted: 2}

	rc := NewRetentionCleaner(CleanerConfig{CheckInterval: 50 * time.Millisecond, MaxAge: time.Hour}, mock, nil)
	rc.Register(src)
	rc.Start()
	defer rc.Stop()

	mock.Add(50 * time.Millisecond)
	mock.Add(50 * time.Millisecond)

	require.GreaterOrEqual(t, atomic.LoadInt32(&src.calls), int32(2))
}

func TestRetentionCleaner_StartStop(t *testing.T) {
	rc := NewRetentionCleaner(CleanerConfig{CheckInterval: time.Millisecond, MaxAge: time.Hour}, clock.NewMock(), nil)
	rc.Start()
	rc.Stop()
}
