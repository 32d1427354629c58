package durability

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestAsyncFlushService_PeriodicFlush(t *testing.T) {
	mock := clock.NewMock()
	var calls int32

	svc := NewAsyncFlushService(func(leastPages int) int64 {
		atomic.AddInt32(&calls, 1)
		return 0
	}, 100*time.Millisecond, time.Hour, 4, mock, nil)
	svc.Start()
	defer svc.Stop()

	mock.Add(100 * time.Millisecond)
	mock.Add(100 * time.Millisecond)

	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestAsyncFlushService_ThoroughIntervalForcesFullFlush(t *testing.T) {
	mock := clock.NewMock()
	var gotLeastPages []int

	svc := NewAsyncFlushService(func(leastPages int) int64 {
		gotLeastPages = append(gotLeastPages, leastPages)
		return 0
	}, 10*time.Millisecond, 20*time.Millisecond, 4, mock, nil)
	svc.Start()
	defer svc.Stop()

	mock.Add(10 * time.Millisecond)
	mock.Add(10 * time.Millisecond)
	mock.Add(10 * time.Millisecond)

	require.NotEmpty(t, gotLeastPages)
	require.Contains(t, gotLeastPages, 0)
}
