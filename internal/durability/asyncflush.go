package durability

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// AsyncFlushFunc flushes at least leastPages worth of dirty data (0 means
// "flush everything regardless of how little is dirty") and returns the
// offset flushed up to.
type AsyncFlushFunc func(leastPages int) int64

// AsyncFlushService periodically flushes the active segment without
// blocking appenders, used when the broker isn't configured for
// synchronous flush. Every ThoroughInterval it forces a full flush
// (leastPages=0) even if fewer than LeastPages are dirty, so data never
// waits indefinitely behind a trickle of small writes.
type AsyncFlushService struct {
	Interval         time.Duration
	LeastPages       int
	ThoroughInterval time.Duration

	flush        AsyncFlushFunc
	clock        clock.Clock
	lastThorough time.Time
	stop         chan struct{}
	wg           sync.WaitGroup
	log          *zap.Logger
}

// NewAsyncFlushService builds a service around flush with the given tuning.
func NewAsyncFlushService(flush AsyncFlushFunc, interval, thoroughInterval time.Duration, leastPages int, c clock.Clock, logger *zap.Logger) *AsyncFlushService {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncFlushService{
		Interval:         interval,
		LeastPages:       leastPages,
		ThoroughInterval: thoroughInterval,
		flush:            flush,
		clock:            c,
		lastThorough:     c.Now(),
		stop:             make(chan struct{}),
		log:              logger,
	}
}

// Start runs the periodic flush loop in a background goroutine.
func (s *AsyncFlushService) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop ends the loop and drains with up to shutdownDrainPasses full
// flushes (see drain).
func (s *AsyncFlushService) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// shutdownDrainPasses bounds how many times drain retries a full flush on
// shutdown, per spec.md §4.4.
const shutdownDrainPasses = 10

// drain flushes everything (leastPages=0) repeatedly until the flushed
// offset stops advancing or shutdownDrainPasses is reached, so a write
// still settling when Stop is called doesn't get left behind after one pass.
func (s *AsyncFlushService) drain() {
	last := int64(-1)
	for i := 0; i < shutdownDrainPasses; i++ {
		offset := s.flush(0)
		if offset == last {
			return
		}
		last = offset
	}
}

func (s *AsyncFlushService) run() {
	defer s.wg.Done()
	ticker := s.clock.Ticker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *AsyncFlushService) tick() {
	now := s.clock.Now()
	if now.Sub(s.lastThorough) >= s.ThoroughInterval {
		s.flush(0)
		s.lastThorough = now
		return
	}
	offset := s.flush(s.LeastPages)
	s.log.Debug("async flush", zap.Int64("flushedOffset", offset))
}
