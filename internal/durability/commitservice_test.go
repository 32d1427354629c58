package durability

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestCommitService_DrainsOnSchedule(t *testing.T) {
	mock := clock.NewMock()
	var calls int32

	svc := NewCommitService(func(leastPages int) int64 {
		atomic.AddInt32(&calls, 1)
		return 0
	}, 50*time.Millisecond, 4, mock, nil)
	svc.Start()

	mock.Add(50 * time.Millisecond)
	svc.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}
