package commitlog

import "time"

// FlushDiskType selects how the Group-Commit/Async Flush services are
// wired up for this instance.
type FlushDiskType int

const (
	FlushDiskAsync FlushDiskType = iota
	FlushDiskSync
)

// BrokerRole selects which replication behavior the Append Engine uses
// after a local append succeeds.
type BrokerRole int

const (
	RoleAsyncMaster BrokerRole = iota
	RoleSyncMaster
	RoleSlave
)

// LockType selects the Append Engine's critical-section lock
// implementation (spec.md §9): ReentrantLock trades latency for lower CPU
// use under contention, SpinLock trades CPU for latency.
type LockType int

const (
	LockReentrant LockType = iota
	LockSpin
)

// Config holds every tunable of a CommitLog instance. There is no
// file-format loader: callers build this struct directly (see
// SPEC_FULL.md's AMBIENT STACK note on configuration).
type Config struct {
	StorePath string

	FlushDiskType      FlushDiskType
	FlushIntervalSync  time.Duration // max wait before a sync flush gives up
	FlushIntervalAsync time.Duration
	FlushLeastPages    int
	FlushThoroughInterval time.Duration

	BrokerRole          BrokerRole
	SyncFlushTimeout    time.Duration
	SlaveTimeoutOnFault time.Duration

	LockType LockType

	MaxMessageSize int

	TransientStorePoolEnable bool
	CommitIntervalMs         time.Duration
	CommitLeastPages         int

	RetentionMaxAge time.Duration
}

// WithDefaults returns a copy of c with zero-valued fields filled in from
// the RocketMQ-style defaults (10ms group commit wait is baked into
// internal/durability; the values here are the broker-facing knobs).
func (c Config) WithDefaults() Config {
	if c.FlushIntervalSync == 0 {
		c.FlushIntervalSync = 500 * time.Millisecond
	}
	if c.FlushIntervalAsync == 0 {
		c.FlushIntervalAsync = 500 * time.Millisecond
	}
	if c.FlushLeastPages == 0 {
		c.FlushLeastPages = 4
	}
	if c.FlushThoroughInterval == 0 {
		c.FlushThoroughInterval = 10 * time.Second
	}
	if c.SyncFlushTimeout == 0 {
		c.SyncFlushTimeout = 5 * time.Second
	}
	if c.SlaveTimeoutOnFault == 0 {
		c.SlaveTimeoutOnFault = 5 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 4 * 1024 * 1024
	}
	if c.CommitIntervalMs == 0 {
		c.CommitIntervalMs = 200 * time.Millisecond
	}
	if c.CommitLeastPages == 0 {
		c.CommitLeastPages = 4
	}
	if c.RetentionMaxAge == 0 {
		c.RetentionMaxAge = 72 * time.Hour
	}
	return c
}
