package scheduler

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolCapsConcurrency(t *testing.T) {
	p := New(2, "test")
	var inFlight int32
	var maxSeen int32

	for i := 0; i < 6; i++ {
		i := i
		if err := p.Go(func() error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			_ = i
			return nil
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}

	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if maxSeen > 2 {
		t.Fatalf("max concurrency %d exceeded cap 2", maxSeen)
	}
}

func TestPoolCollectsError(t *testing.T) {
	p := New(3, "test")
	for i := 0; i < 3; i++ {
		i := i
		if err := p.Go(func() error {
			if i == 1 {
				return fmt.Errorf("boom %d", i)
			}
			return nil
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	if err := p.Wait(); err == nil {
		t.Fatal("expected an error from Wait")
	}
}

func TestPoolZeroCapTreatedAsOne(t *testing.T) {
	p := New(0, "test")
	if p.cap != 1 {
		t.Fatalf("expected cap to be clamped to 1, got %d", p.cap)
	}
}
