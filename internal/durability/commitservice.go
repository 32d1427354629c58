package durability

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// CommitFunc transfers bytes held in the transient write buffer into the
// backing mmap region (a "commit", distinct from an fsync-style "flush")
// and returns the offset committed up to.
type CommitFunc func(leastPages int) int64

// CommitService periodically drains the transient direct-buffer pool into
// the mmap'd segment. It only runs when TransientStorePoolEnable is set —
// when writes go straight into the mmap region (the default this module
// ships with, see internal/commitlog), there is nothing to drain and the
// service is never started.
type CommitService struct {
	Interval   time.Duration
	LeastPages int

	commit CommitFunc
	clock  clock.Clock
	stop   chan struct{}
	wg     sync.WaitGroup
	log    *zap.Logger
}

// NewCommitService builds a service around commit.
func NewCommitService(commit CommitFunc, interval time.Duration, leastPages int, c clock.Clock, logger *zap.Logger) *CommitService {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitService{
		Interval:   interval,
		LeastPages: leastPages,
		commit:     commit,
		clock:      c,
		stop:       make(chan struct{}),
		log:        logger,
	}
}

// Start runs the periodic commit loop in a background goroutine.
func (s *CommitService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop ends the loop and drains with up to shutdownDrainPasses full
// commits (see drain).
func (s *CommitService) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// drain commits everything (leastPages=0) repeatedly until the committed
// offset stops advancing or shutdownDrainPasses is reached, matching
// AsyncFlushService's shutdown behavior (spec.md §4.4).
func (s *CommitService) drain() {
	last := int64(-1)
	for i := 0; i < shutdownDrainPasses; i++ {
		offset := s.commit(0)
		if offset == last {
			return
		}
		last = offset
	}
}

func (s *CommitService) run() {
	defer s.wg.Done()
	ticker := s.clock.Ticker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case <-ticker.C:
			offset := s.commit(s.LeastPages)
			s.log.Debug("commit service drained buffer", zap.Int64("committedOffset", offset))
		}
	}
}
