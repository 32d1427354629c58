package commitlog

import (
	"fmt"
	"sync"
)

// TopicQueueTable tracks the next queueOffset to assign for each
// topic|queueId pair. It must only be mutated while the Append Engine
// holds its critical-section lock (spec.md §3), but reads (e.g. for
// metrics or GetMinOffset-style queries) take their own lock here so
// callers outside the critical section can't corrupt it.
type TopicQueueTable struct {
	mu     sync.Mutex
	offset map[string]uint64
}

// NewTopicQueueTable returns an empty table.
func NewTopicQueueTable() *TopicQueueTable {
	return &TopicQueueTable{offset: make(map[string]uint64)}
}

func tqKey(topic string, queueID uint32) string {
	return fmt.Sprintf("%s|%d", topic, queueID)
}

// NextOffset returns the offset to assign to the next record on this queue
// and advances the counter by count.
func (t *TopicQueueTable) NextOffset(topic string, queueID uint32, count uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := tqKey(topic, queueID)
	cur := t.offset[key]
	t.offset[key] = cur + count
	return cur
}

// SetOffset force-sets the counter for a queue, used by recovery once it
// has scanned the true next-offset from the log.
func (t *TopicQueueTable) SetOffset(topic string, queueID uint32, next uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offset[tqKey(topic, queueID)] = next
}

// CurrentOffset returns the next offset that would be assigned, without
// advancing it.
func (t *TopicQueueTable) CurrentOffset(topic string, queueID uint32) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset[tqKey(topic, queueID)]
}
