package segment

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"commitlog/internal/record"
)

// Segment is one fixed-size, mmap-backed slice of the commit log. Its
// BaseOffset is the absolute physical offset of the first byte it can hold;
// every record written to it carries a PhysicalOffset of BaseOffset plus its
// position within the segment.
type Segment struct {
	mu               sync.RWMutex
	BaseOffset       int64
	WrotePosition    int64 // bytes of valid data, relative to BaseOffset
	LargestTimestamp int64 // max storeTimestamp seen in this segment (ms)

	log    *Log
	index  *Index // sparse WrotePosition -> WrotePosition recovery checkpoints
	config Config
	log2   *zap.Logger
}

// NewSegment opens (or creates) the log and index files for baseOffset and
// recovers WrotePosition/LargestTimestamp by scanning the log forward (see
// recover).
func NewSegment(dir string, baseOffset int64, c Config, logger *zap.Logger) (*Segment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%020d.log", baseOffset))
	l, err := NewLog(logPath, c.SegmentMaxBytes)
	if err != nil {
		return nil, err
	}

	idxPath := filepath.Join(dir, fmt.Sprintf("%020d.index", baseOffset))
	idx, err := NewIndex(idxPath, c.IndexMaxBytes)
	if err != nil {
		l.Close()
		return nil, err
	}

	s := &Segment{
		BaseOffset: baseOffset,
		log:        l,
		index:      idx,
		config:     c,
		log2:       logger,
	}

	if err := s.recover(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// IsFull reports whether a record of the given encoded size would not fit
// in the remaining space of this segment.
func (s *Segment) IsFull(recordSize int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.WrotePosition+recordSize > s.config.SegmentMaxBytes
}

// AppendRecord encodes r and writes it at the current write position. The
// caller must have already stamped r.PhysicalOffset = s.BaseOffset +
// s.WrotePosition (the Append Engine does this while holding its lock, to
// keep the physical-offset allocation and the segment write atomic from the
// CommitLog's point of view).
func (s *Segment) AppendRecord(r *record.Record) (relPos int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(r.Size())
	if s.WrotePosition+size > s.config.SegmentMaxBytes {
		return 0, ErrSegmentFull
	}

	scratch := make([]byte, size)
	if _, err := record.Encode(r, scratch); err != nil {
		return 0, err
	}

	n, pos, err := s.log.Append(scratch)
	if err != nil {
		return 0, err
	}

	s.maybeIndex(pos)
	if r.StoreTimestamp > s.LargestTimestamp {
		s.LargestTimestamp = r.StoreTimestamp
	}
	s.WrotePosition = pos + int64(n)
	return pos, nil
}

// AppendEncoded writes an already-encoded batch (its offset holes already
// patched by the caller) directly into the segment.
func (s *Segment) AppendEncoded(buf []byte, largestTimestamp int64) (relPos int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WrotePosition+int64(len(buf)) > s.config.SegmentMaxBytes {
		return 0, ErrSegmentFull
	}

	n, pos, err := s.log.Append(buf)
	if err != nil {
		return 0, err
	}

	s.maybeIndex(pos)
	if largestTimestamp > s.LargestTimestamp {
		s.LargestTimestamp = largestTimestamp
	}
	s.WrotePosition = pos + int64(n)
	return pos, nil
}

func (s *Segment) maybeIndex(pos int64) {
	if s.config.IndexIntervalBytes <= 0 {
		return
	}
	_, lastPos, _ := s.index.LastEntry()
	if pos-int64(lastPos) < s.config.IndexIntervalBytes && pos != 0 {
		return
	}
	_ = s.index.Write(int32(pos), int32(pos))
}

// SliceFrom returns up to maxBytes of raw data starting at the given
// position relative to BaseOffset. Callers (internal/commitlog's read path)
// decode record boundaries out of the returned slice themselves.
func (s *Segment) SliceFrom(relPos int64, maxBytes int32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if relPos < 0 || relPos >= s.WrotePosition {
		return nil, ErrOffsetOutOfRange
	}
	return s.log.ReadAt(relPos, maxBytes)
}

// recover rebuilds WrotePosition and LargestTimestamp by decoding records
// forward from the index's last entry. NewIndex opens every index with a
// used size of 0, so on a freshly opened segment that entry is position 0
// and the scan covers the whole log.
func (s *Segment) recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, lastPos, _ := s.index.LastEntry()
	startPos := int64(lastPos)
	if startPos > s.log.configSize() {
		startPos = 0
	}

	// NewLog always starts with size 0, even for a file that already holds
	// data from a previous run. Lift the logical size to the full
	// pre-allocated region so ReadRaw can see that data while we scan for
	// the real boundary below; SetSize(currentPos) afterward trims it back.
	s.log.SetSize(s.log.configSize())

	currentPos := startPos
	for currentPos < s.log.configSize() {
		header, err := s.log.ReadRaw(currentPos, 8)
		if err != nil || len(header) < 8 {
			break
		}

		totalSize := int32(be32(header[0:4]))
		if totalSize == 0 {
			break // zero-padding: pre-allocated, never written
		}

		recData, err := s.log.ReadRaw(currentPos, int(totalSize))
		if err != nil || len(recData) < int(totalSize) {
			break
		}

		rec, outcome, consumed, err := record.Decode(recData, nil)
		if err != nil || outcome != record.Success {
			break
		}

		if rec.StoreTimestamp > s.LargestTimestamp {
			s.LargestTimestamp = rec.StoreTimestamp
		}
		currentPos += int64(consumed)
	}

	s.WrotePosition = currentPos
	s.log.SetSize(currentPos)
	s.log.MarkFlushed(currentPos)
	_ = s.index.TruncateAfter(int32(currentPos))

	s.log2.Debug("recovered segment",
		zap.Int64("baseOffset", s.BaseOffset),
		zap.Int64("wrotePosition", s.WrotePosition))
	return nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.index.Close()
	_ = s.log.Close()
	return nil
}

func (s *Segment) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.WrotePosition
}

// Flush msyncs this segment's dirty region to disk, subject to leastPages,
// and returns the segment-relative position flushed up to.
func (s *Segment) Flush(leastPages int) int64 {
	return s.log.Flush(leastPages)
}

// Commit stands in for spec.md §6's commit(leastPages): in a broker with a
// transient direct-buffer write pool, commit transfers bytes from that
// buffer into the mmap region, distinct from flush's fsync-to-disk. This
// segment writes straight into its mmap region with no intermediate
// buffer, so there is nothing to transfer — commit degenerates to flush.
func (s *Segment) Commit(leastPages int) int64 {
	return s.log.Flush(leastPages)
}

func (s *Segment) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Delete(); err != nil {
		return err
	}
	return s.log.Delete()
}
