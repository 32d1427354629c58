package commitlog

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"commitlog/internal/record"
)

// resolverFor returns the TagsCodeResolver a decode should use, or nil if
// the schedule collaborator wasn't wired or doesn't compute tagsCode itself.
func (cl *CommitLog) resolverFor() record.TagsCodeResolver {
	if r, ok := cl.schedule.(record.TagsCodeResolver); ok {
		return r
	}
	return nil
}

// recover rebuilds the TopicQueueTable and replays DispatchSink for every
// record the Recovery Engine decides needs revisiting, per spec.md §4.5:
// a clean shutdown only needs its recent tail re-walked, a crash needs a
// backward search for the newest segment still trustworthy against the
// checkpoint's timestamp before scanning forward from there.
func (cl *CommitLog) recover() error {
	var state CheckpointState
	if cl.checkpoint != nil {
		loaded, err := cl.checkpoint.Load()
		if err != nil {
			return errors.Wrap(err, "loading checkpoint")
		}
		state = loaded
	}

	bases := cl.store.BaseOffsets()
	if len(bases) == 0 {
		return nil
	}

	var startIdx int
	if state.CleanShutdown {
		startIdx = normalRecoveryStartIndex(bases)
	} else {
		startIdx = cl.abnormalRecoveryStartIndex(bases, state)
	}

	for i := startIdx; i < len(bases); i++ {
		seg, err := cl.store.Lookup(bases[i])
		if err != nil {
			return errors.Wrap(err, "opening segment for recovery")
		}
		if err := cl.recoverSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

// normalRecoveryStartIndex mirrors RocketMQ's clean-shutdown recovery: a
// clean stop means every segment but the last three is already fully
// indexed and flushed, so only the recent tail needs its in-memory state
// rebuilt.
func normalRecoveryStartIndex(bases []int64) int {
	idx := len(bases) - 3
	if idx < 0 {
		return 0
	}
	return idx
}

// abnormalRecoveryStartIndex walks backward from the newest segment looking
// for the first one whose leading record is both decodable and no newer
// than the last checkpointed timestamp — the newest segment still known
// consistent before the crash. Everything from there forward gets replayed.
func (cl *CommitLog) abnormalRecoveryStartIndex(bases []int64, state CheckpointState) int {
	for i := len(bases) - 1; i >= 0; i-- {
		seg, err := cl.store.Lookup(bases[i])
		if err != nil {
			continue
		}
		first, ok := cl.peekFirstRecord(seg)
		if !ok {
			continue
		}
		if state.Timestamp == 0 || first.StoreTimestamp <= state.Timestamp {
			return i
		}
	}
	return 0
}

func (cl *CommitLog) peekFirstRecord(seg Segment) (*record.Record, bool) {
	header, err := seg.SliceFrom(0, 4)
	if err != nil || len(header) < 4 {
		return nil, false
	}
	totalSize := int32(header[0])<<24 | int32(header[1])<<16 | int32(header[2])<<8 | int32(header[3])
	if totalSize <= 0 {
		return nil, false
	}
	full, err := seg.SliceFrom(0, totalSize)
	if err != nil {
		return nil, false
	}
	rec, outcome, _, err := record.Decode(full, cl.resolverFor())
	if err != nil || outcome != record.Success {
		return nil, false
	}
	return rec, true
}

// recoverSegment forward-decodes every record in seg, restoring the
// TopicQueueTable's next-offset counters and replaying DispatchSink,
// stopping cleanly at a blank tail or the first corrupt record it meets
// (the segment itself already self-truncated its WrotePosition to that same
// boundary when it was opened).
func (cl *CommitLog) recoverSegment(seg Segment) error {
	var relPos int64
	written := seg.Written()

	for relPos < written {
		header, err := seg.SliceFrom(relPos, 4)
		if err != nil || len(header) < 4 {
			break
		}
		totalSize := int32(header[0])<<24 | int32(header[1])<<16 | int32(header[2])<<8 | int32(header[3])
		if totalSize <= 0 {
			break
		}

		full, err := seg.SliceFrom(relPos, totalSize)
		if err != nil {
			break
		}

		rec, outcome, consumed, decErr := record.Decode(full, cl.resolverFor())
		if outcome == record.EndOfSegment {
			break
		}
		if outcome != record.Success || decErr != nil {
			cl.log.Warn("recovery stopped at corrupt record",
				zap.Int64("baseOffset", seg.Base()), zap.Int64("relPos", relPos), zap.Error(decErr))
			break
		}

		physicalOffset := seg.Base() + relPos
		switch record.TransactionTypeOf(rec.SysFlag) {
		case record.TransactionPrepared, record.TransactionRollback:
			// Carries queueOffset 0 and never consumed a table slot; don't
			// let replay move the counter.
		default:
			cl.topicQueue.SetOffset(rec.Topic, rec.QueueID, rec.QueueOffset+1)
		}
		if err := cl.dispatch.Dispatch(rec, physicalOffset); err != nil {
			cl.log.Warn("dispatch failed during recovery", zap.Error(err))
		}
		cl.setConfirmOffset(physicalOffset + int64(consumed))

		relPos += int64(consumed)
	}
	return nil
}
