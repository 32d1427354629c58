package commitlog

import (
	"github.com/pkg/errors"

	"commitlog/internal/record"
)

// GetData returns up to maxBytes of raw log data starting at the given
// absolute physical offset: the active segment's fast path when the
// offset falls in the currently-written segment, otherwise a lookup
// through the LRU-cached older segments (spec.md §4.6).
func (cl *CommitLog) GetData(physicalOffset int64, maxBytes int32) ([]byte, error) {
	seg, err := cl.store.Lookup(physicalOffset)
	if err != nil {
		return nil, errors.Wrap(err, "locating segment")
	}
	relPos := physicalOffset - seg.Base()
	return seg.SliceFrom(relPos, maxBytes)
}

// GetMessage decodes exactly one record starting at physicalOffset.
func (cl *CommitLog) GetMessage(physicalOffset int64) (*record.Record, error) {
	data, err := cl.GetData(physicalOffset, 4)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, errors.New("commitlog: truncated record header")
	}
	totalSize := int32(data[0])<<24 | int32(data[1])<<16 | int32(data[2])<<8 | int32(data[3])

	full, err := cl.GetData(physicalOffset, totalSize)
	if err != nil {
		return nil, err
	}

	rec, outcome, _, err := record.Decode(full, cl.resolverFor())
	if outcome != record.Success {
		return nil, errors.Wrapf(err, "decoding record at offset %d: %s", physicalOffset, outcome)
	}
	return rec, nil
}

// GetMinOffset returns the smallest physical offset still retained.
func (cl *CommitLog) GetMinOffset() int64 {
	return cl.store.MinOffset()
}

// GetMaxOffset returns the current write position (the offset the next
// append would land at).
func (cl *CommitLog) GetMaxOffset() int64 {
	return cl.store.MaxOffset()
}

// PickupStoreTimestamp returns the storeTimestamp of the record at
// physicalOffset.
func (cl *CommitLog) PickupStoreTimestamp(physicalOffset int64) (int64, error) {
	rec, err := cl.GetMessage(physicalOffset)
	if err != nil {
		return 0, err
	}
	return rec.StoreTimestamp, nil
}
