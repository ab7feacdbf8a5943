package tracking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAWBLocks_SerializesSameKey(t *testing.T) {
	locks := newAWBLocks()

	const goroutines = 50
	counter := 0
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			release := locks.Acquire("transporter-1:AWB-1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestAWBLocks_IndependentKeys(t *testing.T) {
	locks := newAWBLocks()

	releaseA := locks.Acquire("transporter-1:AWB-1")

	// a different AWB must not block behind the held lock
	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("transporter-1:AWB-2")
		releaseB()
		close(done)
	}()
	<-done

	releaseA()
}

func TestAWBLocks_CleansUpReleasedKeys(t *testing.T) {
	locks := newAWBLocks()

	release := locks.Acquire("transporter-1:AWB-1")
	locks.mu.Lock()
	assert.Len(t, locks.locks, 1)
	locks.mu.Unlock()

	release()

	locks.mu.Lock()
	assert.Empty(t, locks.locks)
	locks.mu.Unlock()
}
