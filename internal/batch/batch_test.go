package batch

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"commitlog/internal/record"
)

func newRecord(topic string, body []byte) *record.Record {
	return &record.Record{
		Topic:     topic,
		Body:      body,
		BornHost:  record.HostAddress{IP: net.IPv4(127, 0, 0, 1), Port: 10911},
		StoreHost: record.HostAddress{IP: net.IPv4(127, 0, 0, 1), Port: 10911},
	}
}

func TestEncode_MultipleRecords(t *testing.T) {
	records := []*record.Record{
		newRecord("TopicA", []byte("one")),
		newRecord("TopicA", []byte("two")),
		newRecord("TopicA", []byte("three")),
	}

	b, err := Encode(records, 0)
	require.NoError(t, err)
	require.Equal(t, 3, b.Len())
	require.Len(t, b.Offsets, 3)

	for i, r := range records {
		decoded, outcome, _, err := record.Decode(b.Buffer[b.Offsets[i]:], nil)
		require.NoError(t, err)
		require.Equal(t, record.Success, outcome)
		require.Equal(t, string(r.Body), string(decoded.Body))
	}
}

func TestEncode_RejectsOversizedRecord(t *testing.T) {
	records := []*record.Record{newRecord("TopicA", make([]byte, 1024))}

	_, err := Encode(records, 64)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestPatchOffsets(t *testing.T) {
	records := []*record.Record{
		newRecord("TopicA", []byte("one")),
		newRecord("TopicA", []byte("two")),
	}
	b, err := Encode(records, 0)
	require.NoError(t, err)

	b.PatchOffsets(0, 100, 5000)
	b.PatchOffsets(1, 101, 5000+uint64(records[0].Size()))

	first, _, _, err := record.Decode(b.Buffer[b.Offsets[0]:], nil)
	require.NoError(t, err)
	require.EqualValues(t, 100, first.QueueOffset)
	require.EqualValues(t, 5000, first.PhysicalOffset)

	second, _, _, err := record.Decode(b.Buffer[b.Offsets[1]:], nil)
	require.NoError(t, err)
	require.EqualValues(t, 101, second.QueueOffset)
}
