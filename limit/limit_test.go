package limit

import (
	"sync"
	"testing"
	"time"
)

func TestNewManager_Empty(t *testing.T) {
	m := NewManager()
	// No configs; Acquire/Release should always succeed.
	if !m.Acquire("any-entry") {
		t.Fatal("expected Acquire to succeed for unconfigured entry")
	}
	m.Release("any-entry")
}

func TestNewManager_WithConfig(t *testing.T) {
	m := NewManager(Config{
		Entry:       "img",
		MaxInFlight: 2,
	})
	if m.ActiveCount("img") != 0 {
		t.Fatal("expected 0 active invocations initially")
	}
}

func TestManager_MaxInFlight(t *testing.T) {
	m := NewManager(Config{
		Entry:       "img",
		MaxInFlight: 2,
	})

	if !m.Acquire("img") {
		t.Fatal("first Acquire should succeed")
	}
	if !m.Acquire("img") {
		t.Fatal("second Acquire should succeed")
	}
	// Third should be blocked.
	if m.Acquire("img") {
		t.Fatal("third Acquire should fail (max in-flight 2)")
	}

	// Release one slot.
	m.Release("img")
	if !m.Acquire("img") {
		t.Fatal("Acquire should succeed after Release")
	}
}

func TestManager_AcquireRelease_ActiveCount(t *testing.T) {
	m := NewManager(Config{
		Entry:       "e",
		MaxInFlight: 5,
	})

	for i := range 3 {
		if !m.Acquire("e") {
			t.Fatalf("Acquire %d should succeed", i)
		}
	}
	if m.ActiveCount("e") != 3 {
		t.Fatalf("expected 3 active, got %d", m.ActiveCount("e"))
	}

	m.Release("e")
	m.Release("e")
	if m.ActiveCount("e") != 1 {
		t.Fatalf("expected 1 active, got %d", m.ActiveCount("e"))
	}
}

func TestManager_RateLimit_Throttles(t *testing.T) {
	m := NewManager(Config{
		Entry:     "limited",
		RateLimit: 1.0, // 1 per second
		RateBurst: 1,
	})

	// First should succeed (burst allows it).
	if !m.Acquire("limited") {
		t.Fatal("first Acquire should succeed (within burst)")
	}
	m.Release("limited")

	// Immediately after, token bucket is empty.
	if m.Acquire("limited") {
		t.Fatal("second Acquire should fail (rate limited)")
	}

	// Wait for token refill.
	time.Sleep(1100 * time.Millisecond)
	if !m.Acquire("limited") {
		t.Fatal("Acquire should succeed after token refill")
	}
	m.Release("limited")
}

func TestManager_RateLimit_BurstAllows(t *testing.T) {
	m := NewManager(Config{
		Entry:     "bursty",
		RateLimit: 10.0,
		RateBurst: 3,
	})

	// Three immediate acquires should succeed (burst = 3).
	for i := range 3 {
		if !m.Acquire("bursty") {
			t.Fatalf("Acquire %d should succeed within burst", i)
		}
	}
	if m.Acquire("bursty") {
		t.Fatal("fourth Acquire should fail (burst exhausted)")
	}
}

func TestManager_DefaultBurst(t *testing.T) {
	// RateBurst zero defaults to 1.
	m := NewManager(Config{
		Entry:     "single",
		RateLimit: 100.0,
	})

	if !m.Acquire("single") {
		t.Fatal("first Acquire should succeed")
	}
}

func TestManager_SetConfig_PreservesActive(t *testing.T) {
	m := NewManager(Config{
		Entry:       "e",
		MaxInFlight: 5,
	})

	if !m.Acquire("e") {
		t.Fatal("Acquire should succeed")
	}

	m.SetConfig(Config{Entry: "e", MaxInFlight: 1})

	if m.ActiveCount("e") != 1 {
		t.Fatalf("expected active count 1 after reconfigure, got %d", m.ActiveCount("e"))
	}
	// New cap of 1 is already used up.
	if m.Acquire("e") {
		t.Fatal("Acquire should fail against the new cap")
	}
}

func TestManager_ReleaseNeverGoesNegative(t *testing.T) {
	m := NewManager(Config{Entry: "e", MaxInFlight: 1})

	m.Release("e")
	m.Release("e")
	if m.ActiveCount("e") != 0 {
		t.Fatalf("expected active count 0, got %d", m.ActiveCount("e"))
	}
}

func TestManager_ConcurrentAcquireRelease(t *testing.T) {
	m := NewManager(Config{Entry: "e", MaxInFlight: 10})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire("e") {
				time.Sleep(time.Millisecond)
				m.Release("e")
			}
		}()
	}
	wg.Wait()

	if m.ActiveCount("e") != 0 {
		t.Fatalf("expected active count 0 after all releases, got %d", m.ActiveCount("e"))
	}
}
