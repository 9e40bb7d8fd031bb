package prim

import (
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"honnef.co/go/splat/device"
)

func run(t testing.TB, rec *device.Recording) {
	t.Helper()
	q := device.NewQueue(&device.QueueOptions{Workers: 4, WorkgroupSize: 2})
	defer q.Close()
	if err := q.Run(rec, nil); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// Scan
// =============================================================================

func TestInclusiveSum(t *testing.T) {
	in := []uint32{2, 3, 1}
	out := make([]uint32, len(in))
	var rec device.Recording
	InclusiveSum(&rec, make([]byte, InclusiveSumWorkspace(len(in))), in, out)
	run(t, &rec)
	if want := []uint32{2, 5, 6}; !slices.Equal(out, want) {
		t.Errorf("InclusiveSum(%v) = %v, want %v", in, out, want)
	}
}

func TestInclusiveSumCulledPrimitive(t *testing.T) {
	// A culled primitive touches no tiles and must not shift the others.
	in := []uint32{2, 3, 1, 0}
	out := make([]uint32, len(in))
	var rec device.Recording
	InclusiveSum(&rec, make([]byte, InclusiveSumWorkspace(len(in))), in, out)
	run(t, &rec)
	if want := []uint32{2, 5, 6, 6}; !slices.Equal(out, want) {
		t.Errorf("InclusiveSum(%v) = %v, want %v", in, out, want)
	}
}

func TestInclusiveSumLarge(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{1, scanBlockSize - 1, scanBlockSize, scanBlockSize + 1, 5000} {
		in := make([]uint32, n)
		for i := range in {
			in[i] = rng.Uint32N(100)
		}
		want := make([]uint32, n)
		var sum uint32
		for i, v := range in {
			sum += v
			want[i] = sum
		}

		out := make([]uint32, n)
		var rec device.Recording
		InclusiveSum(&rec, make([]byte, InclusiveSumWorkspace(n)), in, out)
		run(t, &rec)
		if !slices.Equal(out, want) {
			t.Errorf("n = %d: InclusiveSum() differs from sequential sum", n)
		}

		// In place.
		rec.Reset()
		InclusiveSum(&rec, make([]byte, InclusiveSumWorkspace(n)), in, in)
		run(t, &rec)
		if !slices.Equal(in, want) {
			t.Errorf("n = %d: in-place InclusiveSum() differs from sequential sum", n)
		}
	}
}

func TestInclusiveSumEmpty(t *testing.T) {
	var rec device.Recording
	InclusiveSum(&rec, nil, nil, nil)
	if len(rec.Commands) != 0 {
		t.Errorf("empty scan recorded %d commands", len(rec.Commands))
	}
}

// =============================================================================
// Sort
// =============================================================================

func sortPairs(t testing.TB, keys []uint64, values []uint32, endBit int) ([]uint64, []uint32) {
	t.Helper()
	keysOut := make([]uint64, len(keys))
	valuesOut := make([]uint32, len(values))
	var rec device.Recording
	SortPairs(&rec, make([]byte, SortPairsWorkspace(len(keys))), keys, keysOut, values, valuesOut, endBit)
	run(t, &rec)
	return keysOut, valuesOut
}

func TestSortPairsDepthOrder(t *testing.T) {
	// Three instances in tile 5 at depths 3, 1 and 2.
	key := func(tile uint32, depth uint32) uint64 { return uint64(tile)<<32 | uint64(depth) }
	keys := []uint64{key(5, 3), key(5, 1), key(5, 2)}
	values := []uint32{0, 1, 2}
	_, got := sortPairs(t, keys, values, 35)
	if want := []uint32{1, 2, 0}; !slices.Equal(got, want) {
		t.Errorf("SortPairs() values = %v, want %v", got, want)
	}
	if keys[0] != key(5, 3) {
		t.Error("SortPairs() modified its input")
	}
}

func TestSortPairsStable(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for _, n := range []int{1, 10, sortBlockSize + 7, 10000} {
		keys := make([]uint64, n)
		values := make([]uint32, n)
		for i := range keys {
			keys[i] = uint64(rng.Uint32N(64))<<32 | uint64(rng.Uint32N(8))
			values[i] = uint32(i)
		}
		gotKeys, gotValues := sortPairs(t, keys, values, 38)

		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
		for i, j := range idx {
			if gotKeys[i] != keys[j] || gotValues[i] != uint32(j) {
				t.Fatalf("n = %d: pair %d = (%#x, %d), want (%#x, %d)", n, i, gotKeys[i], gotValues[i], keys[j], j)
			}
		}
	}
}

func TestSortPairsEndBit(t *testing.T) {
	// Bits at and above endBit are ignored, so equal low bits keep their
	// input order.
	keys := []uint64{1<<40 | 2, 2, 1<<41 | 1}
	values := []uint32{0, 1, 2}
	_, got := sortPairs(t, keys, values, 32)
	if want := []uint32{2, 0, 1}; !slices.Equal(got, want) {
		t.Errorf("SortPairs() values = %v, want %v", got, want)
	}
}

func TestSortPairsZeroBits(t *testing.T) {
	keys := []uint64{3, 1, 2}
	values := []uint32{0, 1, 2}
	gotKeys, gotValues := sortPairs(t, keys, values, 0)
	if !slices.Equal(gotKeys, keys) || !slices.Equal(gotValues, values) {
		t.Errorf("SortPairs() with no bits = %v, %v, want unchanged input", gotKeys, gotValues)
	}
}

func TestWorkspaceSizes(t *testing.T) {
	for _, f := range []func(int) int{InclusiveSumWorkspace, SortPairsWorkspace} {
		prev := f(0)
		for _, n := range []int{1, 100, 1000, 100000} {
			size := f(n)
			if size < prev {
				t.Errorf("workspace for %d elements = %d, smaller than for fewer elements", n, size)
			}
			prev = size
		}
	}
}

func BenchmarkSortPairs(b *testing.B) {
	const n = 1 << 16
	rng := rand.New(rand.NewPCG(5, 6))
	keys := make([]uint64, n)
	values := make([]uint32, n)
	for i := range keys {
		keys[i] = rng.Uint64() & (1<<44 - 1)
		values[i] = uint32(i)
	}
	keysOut := make([]uint64, n)
	valuesOut := make([]uint32, n)
	ws := make([]byte, SortPairsWorkspace(n))
	q := device.NewQueue(nil)
	defer q.Close()
	var rec device.Recording

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		rec.Reset()
		SortPairs(&rec, ws, keys, keysOut, values, valuesOut, 44)
		if err := q.Run(&rec, nil); err != nil {
			b.Fatal(err)
		}
	}
}
