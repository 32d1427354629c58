// Package batch implements the producer-batch encoder: it lays multiple
// records into one contiguous buffer the Append Engine can hand to the
// Segment Store as a single write, leaving two offset-sized holes per
// record for the engine to patch once it knows where the batch landed.
package batch

import (
	"github.com/pkg/errors"

	"commitlog/internal/record"
	"commitlog/pkg"
)

// queueOffsetHoleOffset and physicalOffsetHoleOffset are the byte positions,
// relative to the start of an encoded record, of the two fields the Append
// Engine fills in after acquiring the append lock (spec.md §4.3): a record's
// queueOffset and physicalOffset aren't known until the engine has reserved
// its place in the log.
const (
	queueOffsetHoleOffset    = 20
	physicalOffsetHoleOffset = 28
)

// ErrMessageTooLarge is returned when a single record would exceed the
// caller-supplied maximum before any lock is taken, per spec.md §4.3's
// "enforce max-message-size before the critical section" requirement.
var ErrMessageTooLarge = errors.New("batch: record exceeds max message size")

// Batch is the encoded form of a producer's record batch, ready to be
// appended to a segment as one contiguous write.
type Batch struct {
	Buffer  []byte // contiguous encoding of every record
	Offsets []int  // Buffer offset where each record begins
}

// Encode lays out records contiguously, validating each against
// maxMessageSize before encoding any of them. Records must already carry
// their Topic, Body, Properties, Flag, SysFlag and host addresses; their
// QueueOffset and PhysicalOffset fields are placeholders the engine patches
// later via PatchOffsets.
func Encode(records []*record.Record, maxMessageSize int) (*Batch, error) {
	total := 0
	for i, r := range records {
		size := int(r.Size())
		if maxMessageSize > 0 && size > maxMessageSize {
			return nil, errors.Wrapf(ErrMessageTooLarge, "record %d: %d bytes", i, size)
		}
		total += size
	}

	buf := make([]byte, total)
	offsets := make([]int, len(records))
	pos := 0
	for i, r := range records {
		offsets[i] = pos
		n, err := record.Encode(r, buf[pos:])
		if err != nil {
			return nil, errors.Wrapf(err, "encoding record %d", i)
		}
		pos += n
	}

	return &Batch{Buffer: buf, Offsets: offsets}, nil
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.Offsets)
}

// Size returns the total encoded byte length of the batch.
func (b *Batch) Size() int {
	return len(b.Buffer)
}

// PatchOffsets fills the queueOffset and physicalOffset holes for the
// record at index i, without touching anything the body CRC covers.
func (b *Batch) PatchOffsets(i int, queueOffset, physicalOffset uint64) {
	msgPos := b.Offsets[i]
	pkg.Encod.PutUint64(b.Buffer[msgPos+queueOffsetHoleOffset:], queueOffset)
	pkg.Encod.PutUint64(b.Buffer[msgPos+physicalOffsetHoleOffset:], physicalOffset)
}
