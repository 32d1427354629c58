// Package lock provides the two interchangeable append-lock
// implementations the Append Engine serializes writes through: a reentrant-
// style mutex and a spin lock, selected by configuration (spec.md §9).
package lock

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Locker is the minimal interface the Append Engine's critical section
// needs from its serializing lock.
type Locker interface {
	Lock()
	Unlock()
}

// MutexLock wraps sync.Mutex. It is the default: lower CPU usage under
// contention, at the cost of a possible goroutine park/wake per append.
type MutexLock struct {
	mu sync.Mutex
}

// NewMutexLock returns a ready-to-use MutexLock.
func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Lock()   { l.mu.Lock() }
func (l *MutexLock) Unlock() { l.mu.Unlock() }

// SpinLock busy-waits on a CAS loop instead of parking the goroutine,
// trading CPU for lower latency when critical sections are short and
// contention is brief — the tradeoff spec.md §9 calls out by name.
type SpinLock struct {
	state int32
}

// NewSpinLock returns a ready-to-use SpinLock.
func NewSpinLock() *SpinLock {
	return &SpinLock{}
}

func (l *SpinLock) Lock() {
	for !atomic.CompareAndSwapInt32(&l.state, 0, 1) {
		runtime.Gosched()
	}
}

func (l *SpinLock) Unlock() {
	atomic.StoreInt32(&l.state, 0)
}
