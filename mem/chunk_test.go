package mem

import (
	"errors"
	"testing"
	"unsafe"
)

func testLayout(c *Chunk) ([]uint32, []float64, []byte) {
	a := Obtain[uint32](c, 3, 4)
	b := Obtain[float64](c, 5, Alignment)
	d := Obtain[byte](c, 7, Alignment)
	return a, b, d
}

func addr[T any](s []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))
}

func TestRequired(t *testing.T) {
	layout := func(c *Chunk) { testLayout(c) }
	// 12 bytes, aligned to 128 plus 40 bytes, aligned to 256 plus 7 bytes,
	// plus slack.
	const want = 256 + 7 + Alignment
	if got := Required(layout); got != want {
		t.Errorf("Required() = %d, want %d", got, want)
	}
	if a, b := Required(layout), Required(layout); a != b {
		t.Errorf("Required() not deterministic: %d != %d", a, b)
	}
}

func TestSizingChunkReturnsNil(t *testing.T) {
	c := SizingChunk()
	a, b, d := testLayout(c)
	if a != nil || b != nil || d != nil {
		t.Error("sizing chunk returned non-nil views")
	}
}

func TestCarveAlignment(t *testing.T) {
	for skew := range 16 {
		size := Required(func(c *Chunk) { testLayout(c) })
		raw := make([]byte, size+skew)
		block := raw[skew:]
		c := NewChunk(block)
		a, b, d := testLayout(c)
		if len(a) != 3 || len(b) != 5 || len(d) != 7 {
			t.Fatalf("skew %d: lengths = %d, %d, %d, want 3, 5, 7", skew, len(a), len(b), len(d))
		}
		if addr(a)%4 != 0 {
			t.Errorf("skew %d: uint32 view at %#x not 4-aligned", skew, addr(a))
		}
		if addr(b)%Alignment != 0 || addr(d)%Alignment != 0 {
			t.Errorf("skew %d: views at %#x, %#x not %d-aligned", skew, addr(b), addr(d), Alignment)
		}
		if c.Offset() > len(block) {
			t.Errorf("skew %d: offset %d exceeds block of %d bytes", skew, c.Offset(), len(block))
		}
	}
}

func TestCarveViewsDisjoint(t *testing.T) {
	var blk Block
	c, err := Carve(blk.Resize, func(c *Chunk) { testLayout(c) })
	if err != nil {
		t.Fatal(err)
	}
	a, b, d := testLayout(c)
	for i := range a {
		a[i] = 0xFFFFFFFF
	}
	for _, v := range b {
		if v != 0 {
			t.Fatal("writing the first view changed the second")
		}
	}
	for _, v := range d {
		if v != 0 {
			t.Fatal("writing the first view changed the third")
		}
	}
}

func TestCarveSamePlacement(t *testing.T) {
	var blk Block
	layout := func(c *Chunk) { testLayout(c) }
	c1, err := Carve(blk.Resize, layout)
	if err != nil {
		t.Fatal(err)
	}
	a1, b1, d1 := testLayout(c1)
	c2, err := Carve(blk.Resize, layout)
	if err != nil {
		t.Fatal(err)
	}
	a2, b2, d2 := testLayout(c2)
	if addr(a1) != addr(a2) || addr(b1) != addr(b2) || addr(d1) != addr(d2) {
		t.Error("carving the same layout twice placed buffers differently")
	}
}

func TestCarveErrors(t *testing.T) {
	layout := func(c *Chunk) { testLayout(c) }
	failing := func(int) ([]byte, error) { return nil, errors.New("out of memory") }
	if _, err := Carve(failing, layout); !errors.Is(err, ErrAllocation) {
		t.Errorf("Carve() with failing resize = %v, want ErrAllocation", err)
	}
	short := func(size int) ([]byte, error) { return make([]byte, size-1), nil }
	if _, err := Carve(short, layout); !errors.Is(err, ErrAllocation) {
		t.Errorf("Carve() with short block = %v, want ErrAllocation", err)
	}
}

func TestObtainZeroCount(t *testing.T) {
	c := NewChunk(make([]byte, 512))
	if s := Obtain[uint64](c, 0, Alignment); s != nil {
		t.Errorf("Obtain() with zero count = %v, want nil", s)
	}
}

func TestObtainOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Obtain() beyond the block did not panic")
		}
	}()
	c := NewChunk(make([]byte, 16))
	Obtain[uint64](c, 100, 8)
}
