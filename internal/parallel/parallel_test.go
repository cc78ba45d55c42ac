package parallel

import (
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	var counter int64
	n := 1000
	seen := make([]bool, n)

	For(n, func(i int) {
		atomic.AddInt64(&counter, 1)
		seen[i] = true
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("Missing index %d", i)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, Sequential())

	if len(order) != 5 {
		t.Fatalf("Expected 5 calls, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("Expected index %d at position %d, got %d", i, i, v)
		}
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestSum(t *testing.T) {
	par := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 10}
	f := func(i int) float64 { return 1 / float64(i+1) }

	want := Sum(500, f, Sequential())
	for range 5 {
		if got := Sum(500, f, par); got != want {
			t.Errorf("Sum() = %v, want %v (bitwise)", got, want)
		}
	}
	if got := Sum(0, f, par); got != 0 {
		t.Errorf("Sum() of nothing = %v", got)
	}
}

func BenchmarkSum(b *testing.B) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1024
	n := 1 << 16
	f := func(i int) float64 { return float64(i) * 1e-3 }

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Sum(n, f, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Sum(n, f, Sequential())
		}
	})
}
