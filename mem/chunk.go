// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mem implements placement of typed buffers inside opaque,
// caller-owned memory blocks.
//
// A pipeline state is described by a layout function that issues a fixed,
// ordered sequence of Obtain calls against a Chunk. Running the layout against
// a sizing chunk computes the number of bytes the state needs; running it
// against a real block slices that block into typed views. Because the
// sequence and the counts fully determine the offsets, two runs with equal
// counts place every buffer at the same offset.
package mem

import (
	"errors"
	"fmt"
	"unsafe"

	"honnef.co/go/safeish"
)

// Alignment is the alignment of every buffer placed by the rasterizer. It is
// also the slack Required adds to account for an unaligned block start, so no
// layout may request a larger alignment.
const Alignment = 128

// ErrAllocation is returned when a block could not be provided.
var ErrAllocation = errors.New("mem: allocation failed")

// ResizeFunc grows caller-owned memory to at least size bytes and returns it.
// It may reallocate, but the returned block must stay valid and unmoved until
// the call that requested it returns.
type ResizeFunc func(size int) ([]byte, error)

// Chunk places buffers sequentially, either inside a real block or, for
// sizing, inside an imaginary block starting at address zero.
type Chunk struct {
	block  []byte
	base   uintptr
	offset int
}

// SizingChunk returns a chunk that only computes offsets. Obtain returns nil
// slices for it.
func SizingChunk() *Chunk {
	return &Chunk{}
}

// NewChunk returns a chunk that carves views out of block.
func NewChunk(block []byte) *Chunk {
	return &Chunk{
		block: block,
		base:  uintptr(unsafe.Pointer(unsafe.SliceData(block))),
	}
}

// Offset returns the number of bytes used so far.
func (c *Chunk) Offset() int {
	return c.offset
}

// Obtain places count elements of type T at the next address that is a
// multiple of alignment and returns the view. alignment has to be a power of
// two no larger than Alignment.
func Obtain[T any](c *Chunk, count int, alignment int) []T {
	if count < 0 {
		panic(fmt.Sprintf("mem: negative count %d", count))
	}
	size := count * int(unsafe.Sizeof(*new(T)))
	off := int(align(c.base+uintptr(c.offset), uintptr(alignment)) - c.base)
	c.offset = off + size
	if c.block == nil || count == 0 {
		return nil
	}
	if c.offset > len(c.block) {
		panic(fmt.Sprintf("mem: chunk of %d bytes cannot hold %d bytes", len(c.block), c.offset))
	}
	return safeish.SliceCast[[]T](c.block[off:c.offset:c.offset])
}

// Required returns the number of bytes a block must have for layout to fit,
// regardless of the block's own alignment.
func Required(layout func(c *Chunk)) int {
	c := SizingChunk()
	layout(c)
	return c.offset + Alignment
}

// Carve requests a block big enough for layout from resize and returns a chunk
// over it, on which the caller replays the same layout.
func Carve(resize ResizeFunc, layout func(c *Chunk)) (*Chunk, error) {
	size := Required(layout)
	block, err := resize(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	if len(block) < size {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrAllocation, len(block), size)
	}
	return NewChunk(block), nil
}

// to has to be a power of two.
func align(v uintptr, to uintptr) uintptr {
	return v + (-v & (to - 1))
}
