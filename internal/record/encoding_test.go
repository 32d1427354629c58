package record

import (
	"net"
	"testing"
)

func sampleRecord() *Record {
	return &Record{
		QueueID:        3,
		Flag:           0,
		QueueOffset:    42,
		PhysicalOffset: 1000,
		BornTimestamp:  1690000000000,
		BornHost:       HostAddress{IP: net.IPv4(10, 0, 0, 1), Port: 10911},
		StoreTimestamp: 1690000000500,
		StoreHost:      HostAddress{IP: net.IPv4(10, 0, 0, 2), Port: 10911},
		Body:           []byte("hello world"),
		Topic:          "TopicA",
		Properties:     EncodeProperties(map[string]string{PropKeys: "k1", PropTags: "TagA"}),
	}
}

func TestRecord_Size(t *testing.T) {
	tests := []struct {
		name string
		r    Record
		want uint32
	}{
		{
			name: "empty body and topic",
			r:    Record{},
			want: CalcMsgLength(0, 0, 0, 8, 8),
		},
		{
			name: "body only",
			r:    Record{Body: []byte("payload")},
			want: CalcMsgLength(7, 0, 0, 8, 8),
		},
		{
			name: "body and topic",
			r:    Record{Body: []byte("payload"), Topic: "T1"},
			want: CalcMsgLength(7, 2, 0, 8, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	r := sampleRecord()
	buf := make([]byte, r.Size())

	n, err := Encode(r, buf)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if n != int(r.TotalSize) {
		t.Fatalf("Encode() wrote %d bytes, want %d", n, r.TotalSize)
	}

	got, outcome, consumed, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if outcome != Success {
		t.Fatalf("Decode() outcome = %v, want Success", outcome)
	}
	if consumed != n {
		t.Errorf("Decode() consumed = %d, want %d", consumed, n)
	}
	if got.Topic != r.Topic {
		t.Errorf("Topic = %q, want %q", got.Topic, r.Topic)
	}
	if string(got.Body) != string(r.Body) {
		t.Errorf("Body = %q, want %q", got.Body, r.Body)
	}
	if got.QueueOffset != r.QueueOffset {
		t.Errorf("QueueOffset = %d, want %d", got.QueueOffset, r.QueueOffset)
	}
	if got.BornHost.Port != r.BornHost.Port {
		t.Errorf("BornHost.Port = %d, want %d", got.BornHost.Port, r.BornHost.Port)
	}
}

func TestEncodeDecode_IPv6Host(t *testing.T) {
	r := sampleRecord()
	r.BornHost = HostAddress{IP: net.ParseIP("2001:db8::1"), Port: 9876}
	buf := make([]byte, r.Size())

	if _, err := Encode(r, buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, outcome, _, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if outcome != Success {
		t.Fatalf("Decode() outcome = %v, want Success", outcome)
	}
	if got.BornHost.Port != 9876 {
		t.Errorf("BornHost.Port = %d, want 9876", got.BornHost.Port)
	}
	if !got.BornHost.IP.Equal(r.BornHost.IP) {
		t.Errorf("BornHost.IP = %v, want %v", got.BornHost.IP, r.BornHost.IP)
	}
}

func TestDecode_BlankMagic(t *testing.T) {
	buf := make([]byte, 8)
	pkgEncodPutBlank(buf)

	_, outcome, consumed, err := Decode(buf, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if outcome != EndOfSegment {
		t.Errorf("outcome = %v, want EndOfSegment", outcome)
	}
	if consumed != 4 {
		t.Errorf("consumed = %d, want 4", consumed)
	}
}

func TestDecode_UnrecognizedMagic(t *testing.T) {
	r := sampleRecord()
	buf := make([]byte, r.Size())
	if _, err := Encode(r, buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// Corrupt the magic field.
	buf[4], buf[5], buf[6], buf[7] = 0, 0, 0, 0

	_, outcome, _, err := Decode(buf, nil)
	if err == nil {
		t.Fatal("Decode() expected error for bad magic")
	}
	if outcome != Corrupt {
		t.Errorf("outcome = %v, want Corrupt", outcome)
	}
}

func TestDecode_CRCMismatch(t *testing.T) {
	r := sampleRecord()
	buf := make([]byte, r.Size())
	if _, err := Encode(r, buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// Flip a byte in the body without touching totalSize/magic/crc fields.
	bodyIdx := len(buf) - len(r.Properties) - 2 - len(r.Topic) - 1 - len(r.Body)
	buf[bodyIdx] ^= 0xFF

	_, outcome, _, err := Decode(buf, nil)
	if err == nil {
		t.Fatal("Decode() expected CRC error")
	}
	if outcome != Corrupt {
		t.Errorf("outcome = %v, want Corrupt", outcome)
	}
}

func TestComputeTagsCode(t *testing.T) {
	tests := []struct {
		name string
		tags string
		want bool // whether result should be non-zero
	}{
		{name: "no tags", tags: "", want: false},
		{name: "with tags", tags: "TagA", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTagsCode("TopicA", 0, 0, tt.tags, nil)
			if (got != 0) != tt.want {
				t.Errorf("ComputeTagsCode(%q) = %d, want non-zero=%v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestProperties_RoundTrip(t *testing.T) {
	in := map[string]string{PropKeys: "order-1", PropTags: "urgent"}
	encoded := EncodeProperties(in)
	out := ParseProperties(encoded)

	for k, v := range in {
		if out[k] != v {
			t.Errorf("property %q = %q, want %q", k, out[k], v)
		}
	}
}

func pkgEncodPutBlank(buf []byte) {
	// totalSize doesn't matter for a blank marker; only the magic code
	// at offset 4 is inspected before returning EndOfSegment.
	buf[4], buf[5], buf[6], buf[7] = byte(BlankMagicCode>>24), byte(BlankMagicCode>>16), byte(BlankMagicCode>>8), byte(BlankMagicCode)
}
