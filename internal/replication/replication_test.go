package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeHA struct {
	slaveOK bool
	acked   bool
	pushed  int64
}

func (f *fakeHA) PushToSlave(offset int64)                              { f.pushed = offset }
func (f *fakeHA) IsSlaveOK() bool                                       { return f.slaveOK }
func (f *fakeHA) WaitForSlaveAck(int64, time.Duration) bool             { return f.acked }

func TestNoopReplicator_AlwaysSucceeds(t *testing.T) {
	r := NewNoopReplicator()
	require.True(t, r.IsSlaveOK())
	require.True(t, r.WaitForSlaveAck(0, 0))
}

func TestSyncMasterReplicator_SlaveNotAvailable(t *testing.T) {
	ha := &fakeHA{slaveOK: false}
	r := NewSyncMasterReplicator(ha)

	got := r.Wait(100, time.Second)
	require.Equal(t, OutcomeSlaveNotAvailable, got)
	require.Zero(t, ha.pushed)
}

func TestSyncMasterReplicator_Acked(t *testing.T) {
	ha := &fakeHA{slaveOK: true, acked: true}
	r := NewSyncMasterReplicator(ha)

	got := r.Wait(100, time.Second)
	require.Equal(t, OutcomeOK, got)
	require.EqualValues(t, 100, ha.pushed)
}

func TestSyncMasterReplicator_Timeout(t *testing.T) {
	ha := &fakeHA{slaveOK: true, acked: false}
	r := NewSyncMasterReplicator(ha)

	got := r.Wait(100, time.Millisecond)
	require.Equal(t, OutcomeFlushSlaveTimeout, got)
}
