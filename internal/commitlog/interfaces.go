// Package commitlog is the Append Engine: it owns the critical section that
// serializes writes to the shared log, the TopicQueueTable, recovery, and
// the read path, driving the external collaborators below (spec.md §6).
package commitlog

import (
	"time"

	"commitlog/internal/record"
)

// Segment is the per-file unit the SegmentStore hands back. It mirrors
// internal/segment.Segment's capabilities under names that don't collide
// with that struct's exported fields, so a thin adapter can wrap the
// concrete type without modifying it.
type Segment interface {
	Base() int64
	Written() int64
	LargestStoreTimestamp() int64
	IsFull(nextSize int64) bool
	AppendRecord(r *record.Record) (relPos int64, err error)
	AppendEncoded(buf []byte, largestTimestamp int64) (relPos int64, err error)
	SliceFrom(relPos int64, maxBytes int32) ([]byte, error)
	// Flush msyncs this segment's dirty region to disk, subject to
	// leastPages, returning the segment-relative position flushed up to.
	Flush(leastPages int) int64
	// Commit transfers bytes out of a transient write buffer, distinct
	// from Flush's fsync-to-disk; a segment with no such buffer degenerates
	// this to Flush.
	Commit(leastPages int) int64
	Close() error
}

// SegmentStore is the Segment Store collaborator: it manages the set of
// fixed-size segment files backing the log, including rollover and expiry.
type SegmentStore interface {
	Active() Segment
	// Roll returns the active segment if it has room for nextSize more
	// bytes, otherwise closes it for writing and opens the next one.
	Roll(nextSize int64) (Segment, error)
	// Lookup returns the segment containing the given absolute physical
	// offset, consulting the LRU cache for non-active segments.
	Lookup(physicalOffset int64) (Segment, error)
	MinOffset() int64
	MaxOffset() int64
	// Flush flushes the active segment to disk, honoring leastPages, and
	// returns the absolute physical offset flushed up to (spec.md §6).
	Flush(leastPages int) int64
	// Commit is spec.md §6's commit(leastPages): draining a transient
	// write buffer into the active segment. Returns the absolute physical
	// offset committed up to.
	Commit(leastPages int) int64
	// BaseOffsets returns every known segment's starting physical offset,
	// ascending (oldest first) — the Recovery Engine walks these to decide
	// where to resume scanning.
	BaseOffsets() []int64
	// DeleteExpiredByTime removes whole segments whose newest record is
	// older than maxAge, never touching the active segment.
	DeleteExpiredByTime(maxAge time.Duration) int
	Close() error
}

// StoreCheckpoint persists the minimal state the Recovery Engine needs to
// pick a starting point without a full directory scan: the last known
// physical max offset, how far the log was actually flushed to disk, and
// whether the previous shutdown was clean.
type StoreCheckpoint interface {
	Load() (CheckpointState, error)
	Save(state CheckpointState) error
}

// CheckpointState is the persisted recovery checkpoint.
type CheckpointState struct {
	PhysicalMaxOffset int64
	FlushedOffset     int64
	Timestamp         int64
	CleanShutdown     bool
}

// DispatchSink receives every record decoded during the Recovery Engine's
// forward scan (and every record freshly appended), the same hook secondary
// indexes like a consume queue would be built from. Building those indexes
// is out of scope; DispatchSink just gives them somewhere to plug in.
type DispatchSink interface {
	Dispatch(rec *record.Record, physicalOffset int64) error
}

// HAService is the subset of the replication bridge the Append Engine
// consults for SYNC_MASTER waits. Deliberately structurally identical to
// internal/replication.HAService so any implementation of one satisfies
// both without an import cycle.
type HAService interface {
	PushToSlave(committedOffset int64)
	IsSlaveOK() bool
	WaitForSlaveAck(committedOffset int64, timeout time.Duration) bool
}

// ScheduleService is the subset of the scheduled-delivery collaborator the
// Append Engine's pre-append rewrite step needs. Structurally identical to
// internal/schedule.Service.
type ScheduleService interface {
	MaxDelayLevel() uint32
	ComputeDeliverTimestamp(delayLevel uint32, storeTimestamp int64) int64
}
