// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mem

import "fmt"

// Block is a growable memory block owned by the caller of the rasterizer. Its
// Resize method satisfies ResizeFunc. The zero value is an empty block without
// a size limit.
//
// A Block must not be shared by two concurrent rasterizer calls.
type Block struct {
	// Limit is the largest size Resize will grow to. Zero means unlimited.
	Limit int

	data []byte
}

// Resize returns the block, growing it to at least size bytes first. Growing
// preserves existing contents.
func (b *Block) Resize(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocation, size)
	}
	if size <= len(b.data) {
		return b.data, nil
	}
	if b.Limit > 0 && size > b.Limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrAllocation, size, b.Limit)
	}
	newLen := growSize(len(b.data), size)
	if b.Limit > 0 {
		newLen = min(newLen, b.Limit)
	}
	data := make([]byte, newLen)
	copy(data, b.data)
	b.data = data
	return b.data, nil
}

// Bytes returns the current contents of the block.
func (b *Block) Bytes() []byte {
	return b.data
}

// Len returns the current size of the block.
func (b *Block) Len() int {
	return len(b.data)
}

func growSize(have, want int) int {
	const growThreshold = 256 * 1024
	if have == 0 {
		return want
	}
	n := have
	for n < want {
		if n < growThreshold {
			n *= 2
		} else {
			n += n / 4
		}
	}
	return n
}
