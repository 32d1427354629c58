// Package retention runs the time-based segment expiry sweep against one or
// more commit logs, mirroring the teacher's ticker-driven RetentionCleaner
// but speaking in terms of a commit log's own segment retention instead of
// per-partition segment lists.
package retention

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ExpirySource is satisfied by commitlog's retention hook (a thin wrapper
// around its SegmentStore.DeleteExpiredByTime); kept as a narrow interface
// here so this package doesn't need to import commitlog.
type ExpirySource interface {
	DeleteExpiredByTime(maxAge time.Duration) int
}

// CleanerConfig configures the sweep interval and the max age a segment may
// reach before it's retired.
type CleanerConfig struct {
	CheckInterval time.Duration
	MaxAge        time.Duration
}

// RetentionCleaner periodically sweeps every registered ExpirySource for
// segments older than CleanerConfig.MaxAge.
type RetentionCleaner struct {
	mu      sync.Mutex
	sources []ExpirySource

	config CleanerConfig
	clock  clock.Clock
	log    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRetentionCleaner builds a cleaner. c and logger may be nil; a nil clock
// falls back to the real wall clock, a nil logger to a no-op one.
func NewRetentionCleaner(config CleanerConfig, c clock.Clock, logger *zap.Logger) *RetentionCleaner {
	if c == nil {
		c = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionCleaner{
		config: config,
		clock:  c,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Register adds a source to the sweep. Safe to call before or after Start.
func (rc *RetentionCleaner) Register(src ExpirySource) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.sources = append(rc.sources, src)
}

func (rc *RetentionCleaner) Start() {
	rc.wg.Add(1)
	go rc.run()
}

func (rc *RetentionCleaner) run() {
	defer rc.wg.Done()

	ticker := rc.clock.Ticker(rc.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanupAll()
		case <-rc.stopCh:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanupAll() {
	rc.mu.Lock()
	sources := make([]ExpirySource, len(rc.sources))
	copy(sources, rc.sources)
	rc.mu.Unlock()

	for _, src := range sources {
		if deleted := src.DeleteExpiredByTime(rc.config.MaxAge); deleted > 0 {
			rc.log.Info("retention sweep deleted expired segments", zap.Int("count", deleted))
		}
	}
}

func (rc *RetentionCleaner) Stop() {
	close(rc.stopCh)
	rc.wg.Wait()
}
