package commitlog

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"commitlog/internal/batch"
	"commitlog/internal/durability"
	"commitlog/internal/record"
	"commitlog/internal/segment"
)

// PutMessage appends a single record through the full Append Engine
// pipeline: schedule-delivery rewrite, validation, the serialized critical
// section, then post-lock dispatch/flush/replication (spec.md §4.3).
func (cl *CommitLog) PutMessage(r *record.Record) PutResult {
	cl.maybeRewriteForDelay(r)

	if err := cl.validate(r); err != nil {
		return PutResult{Status: MessageIllegal, Err: err}
	}

	r.StoreTimestamp = cl.clock.Now().UnixMilli()

	queueOffset, physicalOffset, status, err := cl.doAppend(r)
	if err != nil {
		return PutResult{Status: status, Err: err}
	}

	_ = cl.dispatch.Dispatch(r, physicalOffset)

	result := PutResult{Status: PutOK, QueueOffset: queueOffset, PhysicalOffset: physicalOffset, RecordCount: 1}
	cl.afterAppend(&result, physicalOffset+int64(r.Size()))
	return result
}

// PutMessages appends a producer batch as one contiguous write, assigning
// each record a consecutive queueOffset and physicalOffset while holding
// the lock exactly once for the whole batch.
func (cl *CommitLog) PutMessages(records []*record.Record) PutResult {
	for _, r := range records {
		cl.maybeRewriteForDelay(r)
		if err := cl.validate(r); err != nil {
			return PutResult{Status: MessageIllegal, Err: err}
		}
	}

	now := cl.clock.Now().UnixMilli()
	for _, r := range records {
		r.StoreTimestamp = now
	}

	b, err := batch.Encode(records, cl.cfg.MaxMessageSize)
	if err != nil {
		return PutResult{Status: MessageIllegal, Err: err}
	}

	firstQueueOffset, physicalOffset, status, err := cl.doAppendBatch(records, b)
	if err != nil {
		return PutResult{Status: status, Err: err}
	}

	for _, r := range records {
		_ = cl.dispatch.Dispatch(r, r.PhysicalOffset)
	}

	result := PutResult{Status: PutOK, QueueOffset: firstQueueOffset, PhysicalOffset: physicalOffset, RecordCount: len(records)}
	cl.afterAppend(&result, physicalOffset+int64(b.Size()))
	return result
}

// maybeRewriteForDelay implements the scheduled-delivery rewrite: a message
// with a DELAY property > 0 is redirected into ScheduleTopic under a queue
// keyed by its delay level, stashing its real destination so the (out of
// scope) schedule dispatcher can restore it later. Only NONE/COMMIT
// messages are eligible — a PREPARED or ROLLBACK message's topic/queueId
// must survive untouched for the transaction machinery to find it again.
func (cl *CommitLog) maybeRewriteForDelay(r *record.Record) {
	if cl.schedule == nil {
		return
	}
	switch record.TransactionTypeOf(r.SysFlag) {
	case record.TransactionNone, record.TransactionCommit:
	default:
		return
	}
	props := record.ParseProperties(r.Properties)
	delayStr, ok := props[record.PropDelay]
	if !ok {
		return
	}
	delayLevel := parseDelayLevel(delayStr)
	if delayLevel <= 0 {
		return
	}
	if uint32(delayLevel) > cl.schedule.MaxDelayLevel() {
		delayLevel = int(cl.schedule.MaxDelayLevel())
	}

	props[record.PropRealTopic] = r.Topic
	props[record.PropRealQueue] = uintToString(r.QueueID)
	r.Properties = record.EncodeProperties(props)
	r.Topic = record.ScheduleTopic
	r.QueueID = uint32(delayLevel - 1)
}

func parseDelayLevel(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func uintToString(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (cl *CommitLog) validate(r *record.Record) error {
	if len(r.Topic) == 0 || len(r.Topic) > record.MaxTopicLen {
		return errors.New("commitlog: invalid topic length")
	}
	if len(r.Properties) > record.MaxPropsLen {
		return errors.New("commitlog: properties too long")
	}
	if cl.cfg.MaxMessageSize > 0 && int(r.Size()) > cl.cfg.MaxMessageSize {
		return errors.New("commitlog: message exceeds max size")
	}
	return nil
}

// doAppend runs the serialized critical section for one record: roll if
// needed, assign offsets, write, retrying exactly once on an unexpected
// END_OF_FILE from a racing rollover.
func (cl *CommitLog) doAppend(r *record.Record) (queueOffset uint64, physicalOffset int64, status PutStatus, err error) {
	cl.appendLock.Lock()
	atomic.StoreInt64(&cl.beginTimeInLock, cl.clock.Now().UnixMilli())
	defer func() {
		atomic.StoreInt64(&cl.beginTimeInLock, 0)
		cl.appendLock.Unlock()
	}()

	size := int64(r.Size())
	for attempt := 0; attempt < 2; attempt++ {
		active, rollErr := cl.store.Roll(size)
		if rollErr != nil {
			return 0, 0, CreateMapedFileFailed, errors.Wrap(rollErr, "rolling segment")
		}

		switch record.TransactionTypeOf(r.SysFlag) {
		case record.TransactionPrepared, record.TransactionRollback:
			// Transactional PREPARED/ROLLBACK records carry queueOffset 0
			// and never advance the table — they don't occupy a slot in
			// the per-(topic, queueId) sequence until committed.
			queueOffset = 0
		default:
			queueOffset = cl.topicQueue.NextOffset(r.Topic, r.QueueID, 1)
		}
		physicalOffset = active.Base() + active.Written()
		r.QueueOffset = queueOffset
		r.PhysicalOffset = uint64(physicalOffset)

		_, appendErr := active.AppendRecord(r)
		if appendErr == nil {
			return queueOffset, physicalOffset, PutOK, nil
		}
		if !errors.Is(appendErr, segment.ErrSegmentFull) {
			return 0, 0, UnknownError, errors.Wrap(appendErr, "appending record")
		}
		// Segment filled between Roll and AppendRecord (e.g. a
		// concurrently-sized record); retry once against a fresh roll.
	}

	return 0, 0, CreateMapedFileFailed, errors.New("commitlog: segment repeatedly full")
}

// doAppendBatch mirrors doAppend for a pre-encoded batch, patching each
// record's offset holes as it assigns them inside the same critical
// section.
func (cl *CommitLog) doAppendBatch(records []*record.Record, b *batch.Batch) (firstQueueOffset uint64, physicalOffset int64, status PutStatus, err error) {
	cl.appendLock.Lock()
	atomic.StoreInt64(&cl.beginTimeInLock, cl.clock.Now().UnixMilli())
	defer func() {
		atomic.StoreInt64(&cl.beginTimeInLock, 0)
		cl.appendLock.Unlock()
	}()

	size := int64(b.Size())
	for attempt := 0; attempt < 2; attempt++ {
		active, rollErr := cl.store.Roll(size)
		if rollErr != nil {
			return 0, 0, CreateMapedFileFailed, errors.Wrap(rollErr, "rolling segment")
		}

		basePhysical := active.Base() + active.Written()
		var largestTimestamp int64
		for i, r := range records {
			qOff := cl.topicQueue.NextOffset(r.Topic, r.QueueID, 1)
			if i == 0 {
				firstQueueOffset = qOff
			}
			pOff := basePhysical + int64(b.Offsets[i])
			r.QueueOffset = qOff
			r.PhysicalOffset = uint64(pOff)
			b.PatchOffsets(i, qOff, uint64(pOff))
			if r.StoreTimestamp > largestTimestamp {
				largestTimestamp = r.StoreTimestamp
			}
		}

		_, appendErr := active.AppendEncoded(b.Buffer, largestTimestamp)
		if appendErr == nil {
			return firstQueueOffset, basePhysical, PutOK, nil
		}
		if !errors.Is(appendErr, segment.ErrSegmentFull) {
			return 0, 0, UnknownError, errors.Wrap(appendErr, "appending batch")
		}
	}

	return 0, 0, CreateMapedFileFailed, errors.New("commitlog: segment repeatedly full")
}

// afterAppend runs the post-lock work: waiting on durability/replication
// per configuration, and downgrading the result status (never the
// written-ness) on a timeout. nextOffset is the physical offset just past
// the appended bytes.
func (cl *CommitLog) afterAppend(result *PutResult, nextOffset int64) {
	if cl.cfg.FlushDiskType == FlushDiskSync && cl.groupCommit != nil {
		req := durability.NewFlushRequest(nextOffset, cl.cfg.FlushIntervalSync, cl.clock)
		cl.groupCommit.PutRequest(req)
		if !req.Wait() {
			result.Status = FlushDiskTimeout
		}
	}

	if cl.cfg.BrokerRole == RoleSyncMaster && cl.ha != nil {
		if !cl.ha.IsSlaveOK() {
			result.Status = SlaveNotAvailable
			return
		}
		cl.ha.PushToSlave(nextOffset)
		if !cl.ha.WaitForSlaveAck(nextOffset, cl.cfg.SlaveTimeoutOnFault) {
			result.Status = FlushSlaveTimeout
			return
		}
		cl.setConfirmOffset(nextOffset)
	} else if cl.ha != nil {
		cl.ha.PushToSlave(nextOffset)
	}
}
