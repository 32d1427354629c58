// Package durability implements the three services that turn an append
// into a durable, and optionally replicated, write: the synchronous
// Group-Commit Service, the periodic Async Flush Service, and the
// Commit Service that drains the transient write buffer when enabled
// (spec.md §4.4).
package durability

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// defaultGroupCommitInterval is how often the Group-Commit Service wakes up
// even without a waiting request, matching the real 10ms timed wait.
const defaultGroupCommitInterval = 10 * time.Millisecond

// FlushRequest is one appender's request to be told once the log has been
// flushed at least up to NextOffset, or that the FLUSH_DISK_TIMEOUT budget
// ran out first.
type FlushRequest struct {
	NextOffset int64
	Deadline   time.Time
	done       chan bool
}

// NewFlushRequest creates a request whose deadline is now+timeout.
func NewFlushRequest(nextOffset int64, timeout time.Duration, c clock.Clock) *FlushRequest {
	return &FlushRequest{
		NextOffset: nextOffset,
		Deadline:   c.Now().Add(timeout),
		done:       make(chan bool, 1),
	}
}

// Wait blocks until the request is resolved, returning true if the flush
// caught up to NextOffset in time.
func (r *FlushRequest) Wait() bool {
	return <-r.done
}

func (r *FlushRequest) resolve(ok bool) {
	select {
	case r.done <- ok:
	default:
	}
}

// FlushFunc performs the actual disk flush (e.g. msync on the active mmap
// region) and returns the offset flushed up to.
type FlushFunc func() int64

// GroupCommitService batches concurrent synchronous-flush waiters: it wakes
// every defaultGroupCommitInterval (or as soon as a request arrives),
// swaps its write/read request lists, flushes once, and resolves every
// request whose target offset the flush reached.
type GroupCommitService struct {
	mu      sync.Mutex
	writeQ  []*FlushRequest
	readQ   []*FlushRequest
	flush   FlushFunc
	clock   clock.Clock
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewGroupCommitService builds a service around flush. A nil clock defaults
// to the real wall clock; a nil logger defaults to a no-op logger.
func NewGroupCommitService(flush FlushFunc, c clock.Clock, logger *zap.Logger) *GroupCommitService {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupCommitService{
		flush: flush,
		clock: c,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		log:   logger,
	}
}

// PutRequest enqueues req and nudges the service loop awake.
func (s *GroupCommitService) PutRequest(req *FlushRequest) {
	s.mu.Lock()
	s.writeQ = append(s.writeQ, req)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start runs the commit loop in a background goroutine until Stop is called.
func (s *GroupCommitService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop terminates the loop, resolving any still-pending requests as timed
// out rather than leaving callers blocked forever.
func (s *GroupCommitService) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *GroupCommitService) run() {
	defer s.wg.Done()
	timer := s.clock.Timer(defaultGroupCommitInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			s.doCommit(true)
			return
		case <-s.wake:
		case <-timer.C:
		}
		s.doCommit(false)
		timer.Reset(defaultGroupCommitInterval)
	}
}

func (s *GroupCommitService) doCommit(shuttingDown bool) {
	s.mu.Lock()
	s.readQ, s.writeQ = append(s.readQ, s.writeQ...), s.writeQ[:0]
	s.mu.Unlock()

	if len(s.readQ) == 0 {
		return
	}

	flushedOffset := s.flush()

	remaining := s.readQ[:0]
	for _, req := range s.readQ {
		switch {
		case flushedOffset >= req.NextOffset:
			req.resolve(true)
		case shuttingDown, !s.clock.Now().Before(req.Deadline):
			s.log.Warn("group commit timed out", zap.Int64("nextOffset", req.NextOffset))
			req.resolve(false)
		default:
			remaining = append(remaining, req)
		}
	}
	s.readQ = remaining
}
