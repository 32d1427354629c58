// Package replication provides the Append Engine's replication bridge: the
// HAService contract plus two implementations covering the
// ASYNC_MASTER/SLAVE (no-op) and SYNC_MASTER (wait-for-ack) replication
// roles described in spec.md §4.7/§5.
package replication

import "time"

// Role identifies how this broker node participates in replication.
type Role int

const (
	RoleAsyncMaster Role = iota
	RoleSyncMaster
	RoleSlave
)

// HAService is the minimal contract the Append Engine needs from whatever
// replicates committed data to slave brokers. WaitForSlaveAck owns its own
// timeout/latch bookkeeping — the caller just supplies a budget.
type HAService interface {
	// PushToSlave notifies the replication subsystem that data is
	// available up to committedOffset.
	PushToSlave(committedOffset int64)
	// IsSlaveOK reports whether at least one slave is caught up closely
	// enough to be considered available.
	IsSlaveOK() bool
	// WaitForSlaveAck blocks until a slave acknowledges committedOffset
	// or timeout elapses, reporting which happened first.
	WaitForSlaveAck(committedOffset int64, timeout time.Duration) (acked bool)
}

// NoopReplicator is the zero-dependency default for ASYNC_MASTER/SLAVE
// roles: replication transport is out of scope (spec.md §1), so this
// satisfies the interface without doing any work.
type NoopReplicator struct{}

func NewNoopReplicator() *NoopReplicator { return &NoopReplicator{} }

func (NoopReplicator) PushToSlave(int64) {}
func (NoopReplicator) IsSlaveOK() bool   { return true }
func (NoopReplicator) WaitForSlaveAck(int64, time.Duration) bool {
	return true
}

// Outcome classifies the result of a SyncMasterReplicator.Wait call,
// matching the SLAVE_NOT_AVAILABLE / FLUSH_SLAVE_TIMEOUT distinction the
// Append Engine's PutStatus taxonomy makes (spec.md §7).
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFlushSlaveTimeout
	OutcomeSlaveNotAvailable
)

// SyncMasterReplicator implements the SYNC_MASTER behavior against any
// HAService: check slave availability, push the committed offset, then
// block the caller until the slave acks or the budget elapses.
type SyncMasterReplicator struct {
	ha HAService
}

// NewSyncMasterReplicator wraps ha with the SYNC_MASTER wait-for-ack
// protocol.
func NewSyncMasterReplicator(ha HAService) *SyncMasterReplicator {
	return &SyncMasterReplicator{ha: ha}
}

// Wait pushes committedOffset to the slave and blocks until it is
// acknowledged or timeout elapses.
func (r *SyncMasterReplicator) Wait(committedOffset int64, timeout time.Duration) Outcome {
	if !r.ha.IsSlaveOK() {
		return OutcomeSlaveNotAvailable
	}

	r.ha.PushToSlave(committedOffset)

	if r.ha.WaitForSlaveAck(committedOffset, timeout) {
		return OutcomeOK
	}
	return OutcomeFlushSlaveTimeout
}
