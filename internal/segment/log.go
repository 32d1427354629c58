package segment

import (
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// osPageSize approximates the platform page size closely enough for the
// leastPages dirty-data heuristic; msync itself doesn't require exact
// alignment from the caller.
const osPageSize = 4096

type Log struct {
	mu      sync.RWMutex
	file    *os.File
	data    []byte // mmap region
	size    int64  // logical size (valid data limit)
	flushed int64  // bytes already msynced to disk
}

func NewLog(path string, maxBytes int64) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// Pre-allocation
	if fi.Size() < maxBytes {
		if err := f.Truncate(maxBytes); err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := syscall.Mmap(
		int(f.Fd()), 0, int(maxBytes),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED,
	)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Log{file: f, data: data, size: 0}, nil
}

// Size returns the logical size of the log.
func (l *Log) Size() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// SetSize manually updates the logical size (used during recovery).
func (l *Log) SetSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.size = size
}

// MarkFlushed records size as already durable on disk without performing an
// msync, used once by recovery to establish ground truth: bytes scanned
// back out of an existing file were, by definition, already flushed.
func (l *Log) MarkFlushed(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushed = size
}

// Flush msyncs the mapped region to disk and returns the size flushed up
// to. leastPages > 0 skips the syscall unless at least that many pages are
// dirty; leastPages == 0 always flushes (if anything is dirty).
func (l *Log) Flush(leastPages int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	dirty := l.size - l.flushed
	if dirty <= 0 {
		return l.flushed
	}
	if leastPages > 0 && dirty < int64(leastPages)*osPageSize {
		return l.flushed
	}

	if err := unix.Msync(l.data, unix.MS_SYNC); err != nil {
		return l.flushed
	}
	l.flushed = l.size
	return l.flushed
}

// FlushedSize returns how much of the log is known durable on disk.
func (l *Log) FlushedSize() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.flushed
}

func (l *Log) Append(b []byte) (int, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(b)
	if l.size+int64(n) > int64(len(l.data)) {
		return 0, 0, ErrSegmentFull
	}

	copy(l.data[l.size:], b)
	pos := l.size
	l.size += int64(n)

	return n, pos, nil
}

// ReadAt returns up to maxBytes of raw data starting at pos, clipped to the
// log's valid size. Record-boundary awareness lives with the callers of
// Segment.SliceFrom in internal/commitlog, since the CommitLog's
// physical-offset reads don't need to respect record framing the way the
// old batch format's ReadAt did.
func (l *Log) ReadAt(pos int64, maxBytes int32) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if pos >= l.size {
		return nil, ErrOffsetOutOfRange
	}

	end := pos + int64(maxBytes)
	if end > l.size {
		end = l.size
	}
	return l.data[pos:end], nil
}

// ReadRaw reads exactly `size` bytes. Used for header scanning.
func (l *Log) ReadRaw(pos int64, size int) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if pos+int64(size) > l.size {
		return nil, nil // Not enough data
	}
	return l.data[pos : pos+int64(size)], nil
}

func (l *Log) configSize() int64 {
	return int64(len(l.data))
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = unix.Msync(l.data, unix.MS_SYNC)
	_ = syscall.Munmap(l.data)
	_ = l.file.Truncate(l.size) // Trim to actual data size
	return l.file.Close()
}

func (l *Log) Delete() error {
	path := l.file.Name()
	_ = syscall.Munmap(l.data)
	_ = l.file.Close()
	return os.Remove(path)
}
