// Package schedule provides the minimal scheduled-delivery collaborator the
// Append Engine consults when rewriting a delayed message (spec.md §4.3):
// a delay-level table and the tagsCode it computes for messages parked
// under ScheduleTopic.
package schedule

import (
	"time"

	"commitlog/internal/record"
)

// defaultLevels mirrors the classic fixed delay-level ladder: level N (1
// indexed) maps to levels[N-1].
var defaultLevels = []time.Duration{
	1 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
	1 * time.Minute, 2 * time.Minute, 3 * time.Minute, 4 * time.Minute,
	5 * time.Minute, 6 * time.Minute, 7 * time.Minute, 8 * time.Minute,
	9 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute,
	1 * time.Hour, 2 * time.Hour,
}

// Service implements the delay-level lookups the Append Engine and Record
// Codec need. It also satisfies record.TagsCodeResolver: a delayed
// message's tagsCode is its deliver timestamp, not a hash of TAGS (see
// ResolveTagsCode).
type Service struct {
	levels []time.Duration
}

// New returns a Service using the standard delay-level ladder.
func New() *Service {
	return &Service{levels: defaultLevels}
}

// NewWithLevels returns a Service using a caller-supplied ladder, for tests
// that want coarser or finer delay granularity.
func NewWithLevels(levels []time.Duration) *Service {
	return &Service{levels: levels}
}

// MaxDelayLevel returns the highest valid delay level.
func (s *Service) MaxDelayLevel() uint32 {
	return uint32(len(s.levels))
}

// DurationForLevel returns the configured duration for a 1-indexed delay
// level, or false if the level is out of range.
func (s *Service) DurationForLevel(level uint32) (time.Duration, bool) {
	if level < 1 || int(level) > len(s.levels) {
		return 0, false
	}
	return s.levels[level-1], true
}

// ComputeDeliverTimestamp returns the timestamp at which a message appended
// at storeTimestamp with the given delay level should become visible.
func (s *Service) ComputeDeliverTimestamp(delayLevel uint32, storeTimestamp int64) int64 {
	d, ok := s.DurationForLevel(delayLevel)
	if !ok {
		return storeTimestamp
	}
	return storeTimestamp + d.Milliseconds()
}

// ResolveTagsCode implements record.TagsCodeResolver: for messages parked
// under ScheduleTopic, tagsCode is the deliver timestamp (storeTimestamp
// plus the delay for the message's level), so the delivery dispatcher can
// index and wake on it directly. queueID carries delayLevel-1 (the Append
// Engine's scheduled-delivery rewrite stores it that way), so the real,
// 1-indexed level is queueID+1.
func (s *Service) ResolveTagsCode(queueID uint32, storeTimestamp int64) int64 {
	return s.ComputeDeliverTimestamp(queueID+1, storeTimestamp)
}

var _ record.TagsCodeResolver = (*Service)(nil)
