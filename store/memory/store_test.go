package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/scribe/store"
	"github.com/xraph/scribe/store/memory"
)

func TestDeclareAndAppend(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "loss"); err != nil {
		t.Fatalf("declare error: %v", err)
	}

	for i := range 3 {
		if err := s.Append(ctx, "loss", store.Point{Tick: int64(i), Value: float64(i) * 0.5}); err != nil {
			t.Fatalf("append error: %v", err)
		}
	}

	n, err := s.Len(ctx, "loss")
	if err != nil {
		t.Fatalf("len error: %v", err)
	}
	if n != 3 {
		t.Errorf("len = %d, want 3", n)
	}

	series, err := s.Series(ctx, "loss")
	if err != nil {
		t.Fatalf("series error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}
	for i, p := range series {
		if p.Tick != int64(i) {
			t.Errorf("series[%d].Tick = %d, want %d", i, p.Tick, i)
		}
	}
}

func TestSeriesOrderedByTick(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "acc"); err != nil {
		t.Fatalf("declare error: %v", err)
	}

	// Append out of order.
	for _, tick := range []int64{5, 1, 3} {
		if err := s.Append(ctx, "acc", store.Point{Tick: tick, Value: tick}); err != nil {
			t.Fatalf("append error: %v", err)
		}
	}

	series, err := s.Series(ctx, "acc")
	if err != nil {
		t.Fatalf("series error: %v", err)
	}
	want := []int64{1, 3, 5}
	for i, p := range series {
		if p.Tick != want[i] {
			t.Errorf("series[%d].Tick = %d, want %d", i, p.Tick, want[i])
		}
	}
}

func TestRepeatedTickOverwrites(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "img"); err != nil {
		t.Fatalf("declare error: %v", err)
	}
	if err := s.Append(ctx, "img", store.Point{Tick: 7, Value: "first"}); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if err := s.Append(ctx, "img", store.Point{Tick: 7, Value: "second"}); err != nil {
		t.Fatalf("append error: %v", err)
	}

	series, err := s.Series(ctx, "img")
	if err != nil {
		t.Fatalf("series error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("series length = %d, want 1", len(series))
	}
	if series[0].Value != "second" {
		t.Errorf("value = %v, want %q", series[0].Value, "second")
	}

	// The append counter still counts both appends.
	n, err := s.Len(ctx, "img")
	if err != nil {
		t.Fatalf("len error: %v", err)
	}
	if n != 2 {
		t.Errorf("len = %d, want 2", n)
	}
}

func TestClearResetsCounter(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "loss"); err != nil {
		t.Fatalf("declare error: %v", err)
	}
	if err := s.Append(ctx, "loss", store.Point{Tick: 0, Value: 1}); err != nil {
		t.Fatalf("append error: %v", err)
	}
	if err := s.Clear(ctx, "loss"); err != nil {
		t.Fatalf("clear error: %v", err)
	}

	n, err := s.Len(ctx, "loss")
	if err != nil {
		t.Fatalf("len error: %v", err)
	}
	if n != 0 {
		t.Errorf("len after clear = %d, want 0", n)
	}

	series, err := s.Series(ctx, "loss")
	if err != nil {
		t.Fatalf("series error: %v", err)
	}
	if len(series) != 0 {
		t.Errorf("series after clear length = %d, want 0", len(series))
	}
}

func TestUndeclaredEntry(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.Append(ctx, "ghost", store.Point{}); !errors.Is(err, store.ErrEntryNotDeclared) {
		t.Errorf("append error = %v, want ErrEntryNotDeclared", err)
	}
	if _, err := s.Series(ctx, "ghost"); !errors.Is(err, store.ErrEntryNotDeclared) {
		t.Errorf("series error = %v, want ErrEntryNotDeclared", err)
	}
	if err := s.Clear(ctx, "ghost"); !errors.Is(err, store.ErrEntryNotDeclared) {
		t.Errorf("clear error = %v, want ErrEntryNotDeclared", err)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "grad"); err != nil {
		t.Fatalf("declare error: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, "grad", store.Point{Tick: int64(i), Value: i})
		}()
	}
	wg.Wait()

	count, err := s.Len(ctx, "grad")
	if err != nil {
		t.Fatalf("len error: %v", err)
	}
	if count != n {
		t.Errorf("len = %d, want %d", count, n)
	}
}

func TestAppendNextAssignsSequentialTicks(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "loss"); err != nil {
		t.Fatalf("declare error: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		tick, err := s.AppendNext(ctx, "loss", float64(want))
		if err != nil {
			t.Fatalf("append next error: %v", err)
		}
		if tick != want {
			t.Errorf("tick = %d, want %d", tick, want)
		}
	}

	if _, err := s.AppendNext(ctx, "ghost", 1); !errors.Is(err, store.ErrEntryNotDeclared) {
		t.Errorf("undeclared entry error = %v, want ErrEntryNotDeclared", err)
	}
}

func TestAppendNextConcurrentNoCollisions(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.DeclareEntry(ctx, "loss"); err != nil {
		t.Fatalf("declare error: %v", err)
	}

	const workers, each = 8, 250
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				if _, err := s.AppendNext(ctx, "loss", i); err != nil {
					t.Errorf("append next error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	points, err := s.Series(ctx, "loss")
	if err != nil {
		t.Fatalf("series error: %v", err)
	}
	// No tick collided, so no point was overwritten.
	if len(points) != workers*each {
		t.Fatalf("series has %d points, want %d", len(points), workers*each)
	}
	for i, p := range points {
		if p.Tick != int64(i)+1 {
			t.Fatalf("points[%d].Tick = %d, want %d", i, p.Tick, i+1)
		}
	}
}
