package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLockerSerializesCounter(t *testing.T, l Locker) {
	const goroutines = 50
	const perGoroutine = 200

	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, goroutines*perGoroutine, counter)
}

func TestMutexLock_SerializesAccess(t *testing.T) {
	testLockerSerializesCounter(t, NewMutexLock())
}

func TestSpinLock_SerializesAccess(t *testing.T) {
	testLockerSerializesCounter(t, NewSpinLock())
}

func TestSpinLock_UnlockAllowsReacquire(t *testing.T) {
	l := NewSpinLock()
	l.Lock()
	l.Unlock()
	l.Lock()
	l.Unlock()
}
