package durability

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestGroupCommitService_ResolvesOnceFlushed(t *testing.T) {
	mock := clock.NewMock()
	var flushedOffset int64

	svc := NewGroupCommitService(func() int64 {
		return atomic.LoadInt64(&flushedOffset)
	}, mock, nil)
	svc.Start()
	defer svc.Stop()

	req := NewFlushRequest(100, time.Second, mock)
	svc.PutRequest(req)

	atomic.StoreInt64(&flushedOffset, 100)
	mock.Add(defaultGroupCommitInterval)

	require.True(t, req.Wait())
}

func TestGroupCommitService_TimesOut(t *testing.T) {
	mock := clock.NewMock()

	svc := NewGroupCommitService(func() int64 {
		return 0 // never catches up
	}, mock, nil)
	svc.Start()
	defer svc.Stop()

	req := NewFlushRequest(100, 5*time.Millisecond, mock)
	svc.PutRequest(req)

	mock.Add(defaultGroupCommitInterval)
	mock.Add(10 * time.Millisecond)

	require.False(t, req.Wait())
}
