package segment

// Config tunes one segment's on-disk layout. SegmentMaxBytes is fixed per
// commitlog instance: every segment's BaseOffset is therefore a multiple of
// SegmentMaxBytes. The Segment Store finds the file a physical offset lives
// in by scanning its sorted in-memory list of base offsets for the last one
// at or below that offset, not by dividing by SegmentMaxBytes.
type Config struct {
	SegmentMaxBytes int64
	IndexMaxBytes   int64
	// IndexIntervalBytes controls how often an append writes a sparse index
	// entry. recover() does not resume from these entries (see recover).
	IndexIntervalBytes int64
}

func DefaultConfig() Config {
	return Config{
		SegmentMaxBytes:    1 << 30, // 1GB
		IndexMaxBytes:      10 << 20,
		IndexIntervalBytes: 4096,
	}
}

// Validate rejects a configuration NewSegment couldn't possibly serve.
func (c Config) Validate() error {
	if c.SegmentMaxBytes <= 0 || c.IndexMaxBytes <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
