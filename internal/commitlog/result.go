package commitlog

// PutStatus classifies the outcome of an append, matching the taxonomy
// spec.md §7 requires.
type PutStatus int

const (
	PutOK PutStatus = iota
	CreateMapedFileFailed
	MessageIllegal
	FlushDiskTimeout
	FlushSlaveTimeout
	SlaveNotAvailable
	UnknownError
)

func (s PutStatus) String() string {
	switch s {
	case PutOK:
		return "PUT_OK"
	case CreateMapedFileFailed:
		return "CREATE_MAPEDFILE_FAILED"
	case MessageIllegal:
		return "MESSAGE_ILLEGAL"
	case FlushDiskTimeout:
		return "FLUSH_DISK_TIMEOUT"
	case FlushSlaveTimeout:
		return "FLUSH_SLAVE_TIMEOUT"
	case SlaveNotAvailable:
		return "SLAVE_NOT_AVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// PutResult is the full result of appending one record or batch.
type PutResult struct {
	Status         PutStatus
	QueueOffset    uint64
	PhysicalOffset int64
	RecordCount    int
	Err            error
}

// OK reports whether the append was durably accepted (flush/replication
// timeouts still count the data as written — they describe a durability
// risk, not a rejection).
func (r PutResult) OK() bool {
	switch r.Status {
	case PutOK, FlushDiskTimeout, FlushSlaveTimeout, SlaveNotAvailable:
		return true
	default:
		return false
	}
}
