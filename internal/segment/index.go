package segment

import (
	"encoding/binary"
	"os"
	"sync"
	"syscall"
)

const entryWidth = 8 // Offset(4) + Position(4)

type Index struct {
	mu   sync.RWMutex
	file *os.File
	data []byte // mmap
	size int64  // used bytes
}

func NewIndex(path string, maxBytes int64) (*Index, error) {
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
		return nil, err
	}

	return &Index{file: f, data: data, size: 0}, nil
}

// Write appends (RelativeOffset, PhysicalPosition).
func (i *Index) Write(off int32, pos int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.size+entryWidth > int64(len(i.data)) {
		return ErrIndexFull
	}

	binary.BigEndian.PutUint32(i.data[i.size:], uint32(off))
	binary.BigEndian.PutUint32(i.data[i.size+4:], uint32(pos))
	i.size += entryWidth
	return nil
}

func (i *Index) Close() error {
	syscall.Munmap(i.data)
	i.file.Truncate(i.size) // Trim to actual size
	return i.file.Close()
}

func (i *Index) Delete() error {
	path := i.file.Name()
	_ = syscall.Munmap(i.data)
	_ = i.file.Close()
	return os.Remove(path)
}

/* Last Entry */
func (i *Index) LastEntry() (off int32, pos int32, err error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.size == 0 {
		return 0, 0, nil
	}

	lastOffset := i.size - entryWidth
	off = int32(binary.BigEndian.Uint32(i.data[lastOffset : lastOffset+4]))
	pos = int32(binary.BigEndian.Uint32(i.data[lastOffset+4 : lastOffset+8]))
	return off, pos, nil
}

// TruncateAfter drops any sparse checkpoint entry pointing past maxPos,
// used by Segment.recover to keep the index consistent when recovery
// discovers the log's true WrotePosition is shorter than a stale entry.
func (i *Index) TruncateAfter(maxPos int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	entries := int(i.size / entryWidth)
	keep := 0
	for idx := 0; idx < entries; idx++ {
		off := idx * entryWidth
		pos := int32(binary.BigEndian.Uint32(i.data[off+4:]))
		if pos > maxPos {
			break
		}
		keep = idx + 1
	}
	i.size = int64(keep) * entryWidth
	return nil
}
