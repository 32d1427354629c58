package segment

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"commitlog/internal/record"
)

func newTestRecord(body []byte, storeTimestamp int64) *record.Record {
	return &record.Record{
		Topic:          "TopicA",
		Body:           body,
		StoreTimestamp: storeTimestamp,
		BornHost:       record.HostAddress{IP: net.IPv4(127, 0, 0, 1), Port: 10911},
		StoreHost:      record.HostAddress{IP: net.IPv4(127, 0, 0, 1), Port: 10911},
	}
}

func TestSegment_Recovery_RebuildFromSparseIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SegmentMaxBytes:    1024 * 1024,
		IndexMaxBytes:      1024 * 1024,
		IndexIntervalBytes: 10, // Force frequent indexing
	}
	baseOffset := int64(0)

	seg, err := NewSegment(dir, baseOffset, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}

	if _, err := seg.AppendRecord(newTestRecord([]byte("payload-1"), 1000)); err != nil {
		t.Fatalf("AppendRecord #1: %v", err)
	}
	if _, err := seg.AppendRecord(newTestRecord([]byte("payload-2"), 2000)); err != nil {
		t.Fatalf("AppendRecord #2: %v", err)
	}
	if _, err := seg.AppendRecord(newTestRecord([]byte("payload-3"), 3000)); err != nil {
		t.Fatalf("AppendRecord #3: %v", err)
	}

	expectedSize := seg.Size()
	if expectedSize == 0 {
		t.Fatal("expected non-zero segment size after appends")
	}
	seg.Close()

	// Sabotage: truncate the index file to simulate its loss.
	idxPath := filepath.Join(dir, fmt.Sprintf("%020d.index", baseOffset))
	if err := os.Truncate(idxPath, 0); err != nil {
		t.Fatalf("Failed to truncate index: %v", err)
	}

	recoveredSeg, err := NewSegment(dir, baseOffset, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to recover segment: %v", err)
	}
	defer recoveredSeg.Close()

	if recoveredSeg.Size() != expectedSize {
		t.Errorf("Recovered size mismatch. Want %d, Got %d", expectedSize, recoveredSeg.Size())
	}
	if recoveredSeg.LargestTimestamp != 3000 {
		t.Errorf("LargestTimestamp mismatch. Want 3000, Got %d", recoveredSeg.LargestTimestamp)
	}
}

func TestSegment_Recovery_TruncatesCorruptTail(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SegmentMaxBytes:    1024 * 1024,
		IndexMaxBytes:      1024 * 1024,
		IndexIntervalBytes: 100,
	}
	baseOffset := int64(100)

	seg, err := NewSegment(dir, baseOffset, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create segment: %v", err)
	}

	if _, err := seg.AppendRecord(newTestRecord([]byte("valid-data"), 1000)); err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}

	validSize := seg.Size()
	seg.Close()

	// Sabotage: append garbage past the valid tail.
	logPath := filepath.Join(dir, fmt.Sprintf("%020d.log", baseOffset))
	f, err := os.OpenFile(logPath, os.O_WRONLY, 0666)
	if err != nil {
		t.Fatalf("Failed to open log for corruption: %v", err)
	}
	garbage := []byte{0x00, 0x00, 0x00, 0x2A, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := f.WriteAt(garbage, validSize); err != nil {
		t.Fatalf("Failed to write garbage: %v", err)
	}
	f.Close()

	recoveredSeg, err := NewSegment(dir, baseOffset, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to recover segment: %v", err)
	}
	defer recoveredSeg.Close()

	if recoveredSeg.Size() != validSize {
		t.Errorf("Size mismatch. Expected %d (truncated), Got %d", validSize, recoveredSeg.Size())
	}
}
