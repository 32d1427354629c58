package commitlog

import (
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"commitlog/internal/record"
	"commitlog/internal/schedule"
	"commitlog/internal/segment"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []*record.Record
}

func (s *recordingSink) Dispatch(rec *record.Record, physicalOffset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func testSegmentConfig() segment.Config {
	return segment.Config{
		SegmentMaxBytes:    64 * 1024,
		IndexMaxBytes:      4096,
		IndexIntervalBytes: 128,
	}
}

func newTestCommitLog(t *testing.T, dir string, sink DispatchSink) *CommitLog {
	t.Helper()
	store, err := OpenFileSegmentStore(dir, testSegmentConfig(), 4, clock.New(), nil)
	require.NoError(t, err)

	checkpoint := NewFileCheckpoint(dir)
	cl := New(Config{}, store, checkpoint, sink, schedule.New(), nil, clock.New(), nil)
	require.NoError(t, cl.Start())
	return cl
}

func newRecord(topic string, body string) *record.Record {
	return &record.Record{
		Topic: topic,
		Body:  []byte(body),
	}
}

func TestCommitLog_PutAndGetMessage(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cl := newTestCommitLog(t, dir, sink)
	defer cl.Shutdown()

	result := cl.PutMessage(newRecord("orders", "hello"))
	require.True(t, result.OK())
	require.Equal(t, PutOK, result.Status)

	got, err := cl.GetMessage(result.PhysicalOffset)
	require.NoError(t, err)
	require.Equal(t, "orders", got.Topic)
	require.Equal(t, []byte("hello"), got.Body)
	require.Equal(t, 1, sink.count())
}

func TestCommitLog_PutMessages_AssignsSequentialOffsets(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cl := newTestCommitLog(t, dir, sink)
	defer cl.Shutdown()

	records := []*record.Record{
		newRecord("orders", "one"),
		newRecord("orders", "two"),
		newRecord("orders", "three"),
	}
	result := cl.PutMessages(records)
	require.True(t, result.OK())
	require.Equal(t, 3, result.RecordCount)

	for i, r := range records {
		require.Equal(t, result.QueueOffset+uint64(i), r.QueueOffset)
	}
	require.Equal(t, 3, sink.count())
}

func TestCommitLog_DelayedMessage_RewrittenToScheduleTopic(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cl := newTestCommitLog(t, dir, sink)
	defer cl.Shutdown()

	r := newRecord("orders", "later")
	props := record.ParseProperties(r.Properties)
	props[record.PropDelay] = "3"
	r.Properties = record.EncodeProperties(props)

	result := cl.PutMessage(r)
	require.True(t, result.OK())
	require.Equal(t, record.ScheduleTopic, r.Topic)
	require.Equal(t, uint32(2), r.QueueID) // delayLevel-1

	rewrittenProps := record.ParseProperties(r.Properties)
	require.Equal(t, "orders", rewrittenProps[record.PropRealTopic])
}

func TestCommitLog_Recovery_RebuildsTopicQueueAndReplays(t *testing.T) {
	dir := t.TempDir()
	firstSink := &recordingSink{}
	cl := newTestCommitLog(t, dir, firstSink)

	for i := 0; i < 5; i++ {
		result := cl.PutMessage(newRecord("orders", "msg"))
		require.True(t, result.OK())
	}
	require.NoError(t, cl.Shutdown())

	secondSink := &recordingSink{}
	reopened := newTestCommitLog(t, dir, secondSink)
	defer reopened.Shutdown()

	require.Equal(t, uint64(5), reopened.topicQueue.CurrentOffset("orders", 0))
	require.Equal(t, 5, secondSink.count())
}

func TestCommitLog_PreparedTransaction_DoesNotAdvanceQueueOffset(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cl := newTestCommitLog(t, dir, sink)
	defer cl.Shutdown()

	prepared := newRecord("orders", "half-done")
	prepared.SysFlag = record.WithTransactionType(prepared.SysFlag, record.TransactionPrepared)
	result := cl.PutMessage(prepared)
	require.True(t, result.OK())
	require.EqualValues(t, 0, result.QueueOffset)
	require.EqualValues(t, 0, prepared.QueueOffset)

	rollback := newRecord("orders", "undone")
	rollback.SysFlag = record.WithTransactionType(rollback.SysFlag, record.TransactionRollback)
	result = cl.PutMessage(rollback)
	require.True(t, result.OK())
	require.EqualValues(t, 0, result.QueueOffset)

	// Neither PREPARED nor ROLLBACK consumed a slot: the next ordinary
	// record still lands at queueOffset 0.
	normal := newRecord("orders", "hello")
	result = cl.PutMessage(normal)
	require.True(t, result.OK())
	require.EqualValues(t, 0, result.QueueOffset)
}

func TestCommitLog_PreparedTransaction_DelayPropertyNotRewritten(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cl := newTestCommitLog(t, dir, sink)
	defer cl.Shutdown()

	r := newRecord("orders", "later")
	r.SysFlag = record.WithTransactionType(r.SysFlag, record.TransactionPrepared)
	props := record.ParseProperties(r.Properties)
	props[record.PropDelay] = "3"
	r.Properties = record.EncodeProperties(props)

	result := cl.PutMessage(r)
	require.True(t, result.OK())
	require.Equal(t, "orders", r.Topic)
}

func TestCommitLog_MessageIllegal_RejectsOversizedTopic(t *testing.T) {
	dir := t.TempDir()
	cl := newTestCommitLog(t, dir, &recordingSink{})
	defer cl.Shutdown()

	r := newRecord("orders", "x")
	r.Topic = strings.Repeat("t", record.MaxTopicLen+1)
	result := cl.PutMessage(r)
	require.False(t, result.OK())
	require.Equal(t, MessageIllegal, result.Status)
}
