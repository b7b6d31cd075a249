package lock

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedSerializesSameKey(t *testing.T) {
	k := NewKeyed()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("%d goroutines held key 7 at once", maxInside)
	}
	if k.Len() != 0 {
		t.Fatalf("Len = %d after all unlocks, want 0", k.Len())
	}
}

func TestKeyedIndependentKeys(t *testing.T) {
	k := NewKeyed()
	unlockA := k.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := k.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key 2 blocked behind key 1")
	}
}

func TestKeyedUnlockTwiceIsSafe(t *testing.T) {
	k := NewKeyed()
	unlock := k.Lock(3)
	unlock()
	unlock()

	if k.Len() != 0 {
		t.Fatalf("Len = %d, want 0", k.Len())
	}
}
