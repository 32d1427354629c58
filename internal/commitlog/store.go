package commitlog

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"commitlog/internal/resource"
	"commitlog/internal/segment"
)

// segmentAdapter satisfies the commitlog.Segment interface by wrapping the
// concrete *segment.Segment under method names that don't collide with its
// exported fields.
type segmentAdapter struct {
	*segment.Segment
}

func (s *segmentAdapter) Base() int64                    { return s.Segment.BaseOffset }
func (s *segmentAdapter) Written() int64                 { return s.Segment.Size() }
func (s *segmentAdapter) LargestStoreTimestamp() int64   { return s.Segment.LargestTimestamp }
func (s *segmentAdapter) IsFull(nextSize int64) bool     { return s.Segment.IsFull(nextSize) }

// FileSegmentStore is the default SegmentStore: fixed-size mmap-backed
// segment files on disk, named by their starting physical offset,
// accelerated by an LRU cache of open (non-active) segments (spec.md §6),
// grounded on the teacher's internal/resource.SegmentCache and
// internal/segment.Segment.
type FileSegmentStore struct {
	mu          sync.RWMutex
	dir         string
	cfg         segment.Config
	cache       *resource.SegmentCache
	active      *segmentAdapter
	baseOffsets []int64
	clock       clock.Clock
	log         *zap.Logger
}

// OpenFileSegmentStore scans dir for existing segment files (grounded on
// liftbridge's commitLog.open(): reconstruct the segment list from the
// directory rather than trusting any index) and opens the newest one as
// active. If dir is empty, it creates a fresh segment at offset 0.
func OpenFileSegmentStore(dir string, cfg segment.Config, cacheCapacity int, c clock.Clock, logger *zap.Logger) (*FileSegmentStore, error) {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}

	baseOffsets, err := scanSegmentBaseOffsets(dir)
	if err != nil {
		return nil, err
	}

	store := &FileSegmentStore{
		dir:         dir,
		cfg:         cfg,
		cache:       resource.NewSegmentCache(cacheCapacity),
		baseOffsets: baseOffsets,
		clock:       c,
		log:         logger,
	}

	activeBase := int64(0)
	if len(baseOffsets) > 0 {
		activeBase = baseOffsets[len(baseOffsets)-1]
	} else {
		store.baseOffsets = []int64{0}
	}

	seg, err := segment.NewSegment(dir, activeBase, cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening active segment")
	}
	store.active = &segmentAdapter{seg}

	return store, nil
}

func scanSegmentBaseOffsets(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading store directory")
	}

	var bases []int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".log")
		base, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		bases = append(bases, base)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases, nil
}

func (s *FileSegmentStore) Active() Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Roll returns the active segment if nextSize still fits, otherwise opens
// the next fixed-size segment and makes it active.
func (s *FileSegmentStore) Roll(nextSize int64) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active.IsFull(nextSize) {
		return s.active, nil
	}

	newBase := s.active.Base() + s.cfg.SegmentMaxBytes
	seg, err := segment.NewSegment(s.dir, newBase, s.cfg, s.log)
	if err != nil {
		return nil, errors.Wrap(err, "creating new segment")
	}

	s.baseOffsets = append(s.baseOffsets, newBase)
	s.active = &segmentAdapter{seg}
	return s.active, nil
}

// Lookup returns the segment containing physicalOffset, which is the
// active segment itself or a cache-loaded read handle onto an older one.
func (s *FileSegmentStore) Lookup(physicalOffset int64) (Segment, error) {
	s.mu.RLock()
	activeBase := s.active.Base()
	base := s.baseOffsetFor(physicalOffset)
	s.mu.RUnlock()

	if base < 0 {
		return nil, segment.ErrOffsetOutOfRange
	}
	if base == activeBase {
		return s.Active(), nil
	}

	seg, err := s.cache.GetOrLoad(segmentCacheKey(base), func() (*segment.Segment, error) {
		return segment.NewSegment(s.dir, base, s.cfg, s.log)
	})
	if err != nil {
		return nil, err
	}
	return &segmentAdapter{seg}, nil
}

func (s *FileSegmentStore) baseOffsetFor(physicalOffset int64) int64 {
	best := int64(-1)
	for _, b := range s.baseOffsets {
		if b <= physicalOffset {
			best = b
		} else {
			break
		}
	}
	return best
}

func segmentCacheKey(base int64) string {
	return strconv.FormatInt(base, 10)
}

// BaseOffsets returns every known segment's starting physical offset,
// ascending, including the active segment.
func (s *FileSegmentStore) BaseOffsets() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, len(s.baseOffsets))
	copy(out, s.baseOffsets)
	return out
}

func (s *FileSegmentStore) MinOffset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.baseOffsets) == 0 {
		return 0
	}
	return s.baseOffsets[0]
}

func (s *FileSegmentStore) MaxOffset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Base() + s.active.Written()
}

// Flush flushes the active segment to disk, honoring leastPages, and
// returns the absolute physical offset flushed up to.
func (s *FileSegmentStore) Flush(leastPages int) int64 {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	return active.Base() + active.Flush(leastPages)
}

// Commit drains the active segment's transient write buffer (if any) and
// returns the absolute physical offset committed up to.
func (s *FileSegmentStore) Commit(leastPages int) int64 {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	return active.Base() + active.Commit(leastPages)
}

// DeleteExpiredByTime retires whole segments whose newest record predates
// now-maxAge, matching the teacher's time-based RetentionCleaner but
// speaking in terms of this store's own segments. The active segment is
// never a candidate.
func (s *FileSegmentStore) DeleteExpiredByTime(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-maxAge).UnixMilli()
	deleted := 0
	remaining := s.baseOffsets[:0]

	for _, base := range s.baseOffsets {
		if base == s.active.Base() {
			remaining = append(remaining, base)
			continue
		}

		seg, err := s.cache.GetOrLoad(segmentCacheKey(base), func() (*segment.Segment, error) {
			return segment.NewSegment(s.dir, base, s.cfg, s.log)
		})
		if err != nil {
			remaining = append(remaining, base)
			continue
		}

		if seg.LargestTimestamp >= cutoff {
			remaining = append(remaining, base)
			continue
		}

		s.cache.Evict(segmentCacheKey(base))
		if err := seg.Delete(); err != nil {
			s.log.Warn("failed to delete expired segment", zap.Int64("baseOffset", base), zap.Error(err))
			remaining = append(remaining, base)
			continue
		}
		deleted++
	}

	s.baseOffsets = remaining
	return deleted
}

func (s *FileSegmentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.cache.Close()
	return s.active.Close()
}
