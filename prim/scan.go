// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package prim provides data-parallel scan and sort primitives that record
// their work into a device.Recording.
//
// Like their GPU counterparts, the primitives need scratch memory. Callers
// query its size up front (InclusiveSumWorkspace, SortPairsWorkspace) and
// provide a workspace of at least that many bytes, aligned to mem.Alignment.
// The queries do no work and allocate nothing.
package prim

import (
	"fmt"

	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/mem"
)

const scanBlockSize = 1024

func scanLayout(c *mem.Chunk, n int) (blockSums []uint32) {
	return mem.Obtain[uint32](c, jmath.DivCeil(n, scanBlockSize), 4)
}

// InclusiveSumWorkspace returns the number of workspace bytes InclusiveSum
// needs for n elements.
func InclusiveSumWorkspace(n int) int {
	return mem.Required(func(c *mem.Chunk) { scanLayout(c, n) })
}

// InclusiveSum records computing the inclusive prefix sum of in into out. in
// and out may be the same slice.
func InclusiveSum(rec *device.Recording, ws []byte, in, out []uint32) {
	n := len(in)
	if len(out) != n {
		panic(fmt.Sprintf("prim: scan of %d elements into %d elements", n, len(out)))
	}
	if n == 0 {
		return
	}
	sums := scanLayout(mem.NewChunk(ws), n)
	numBlocks := len(sums)

	rec.Dispatch("scan reduce", numBlocks, func(b int) {
		start := b * scanBlockSize
		end := min(start+scanBlockSize, n)
		var sum uint32
		for _, v := range in[start:end] {
			sum += v
		}
		sums[b] = sum
	})
	rec.Dispatch("scan block offsets", 1, func(int) {
		exclusiveScan(sums)
	})
	rec.Dispatch("scan propagate", numBlocks, func(b int) {
		start := b * scanBlockSize
		end := min(start+scanBlockSize, n)
		running := sums[b]
		for i := start; i < end; i++ {
			running += in[i]
			out[i] = running
		}
	})
}

// exclusiveScan replaces every element of s by the sum of the elements before
// it.
func exclusiveScan(s []uint32) {
	var sum uint32
	for i, v := range s {
		s[i] = sum
		sum += v
	}
}
