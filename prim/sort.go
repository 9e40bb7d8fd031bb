// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package prim

import (
	"fmt"

	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/mem"
)

const (
	radixBits      = 8
	radixBuckets   = 1 << radixBits
	sortBlockSize  = 1024
	maxSortKeyBits = 64
)

type sortWorkspace struct {
	keys   []uint64
	values []uint32
	// hist is indexed by digit*numBlocks + block, so that an exclusive scan
	// over it yields stable global scatter offsets.
	hist []uint32
}

func sortLayout(c *mem.Chunk, n int) sortWorkspace {
	numBlocks := jmath.DivCeil(n, sortBlockSize)
	return sortWorkspace{
		keys:   mem.Obtain[uint64](c, n, mem.Alignment),
		values: mem.Obtain[uint32](c, n, mem.Alignment),
		hist:   mem.Obtain[uint32](c, radixBuckets*numBlocks, mem.Alignment),
	}
}

// SortPairsWorkspace returns the number of workspace bytes SortPairs needs
// for n pairs.
func SortPairsWorkspace(n int) int {
	return mem.Required(func(c *mem.Chunk) { sortLayout(c, n) })
}

// SortPairs records a stable ascending sort of the pairs (keysIn[i],
// valuesIn[i]) into keysOut and valuesOut, considering only the key bits
// [0, endBit). Input and output must not overlap. Inputs are left untouched.
func SortPairs(
	rec *device.Recording,
	ws []byte,
	keysIn, keysOut []uint64,
	valuesIn, valuesOut []uint32,
	endBit int,
) {
	n := len(keysIn)
	if len(keysOut) != n || len(valuesIn) != n || len(valuesOut) != n {
		panic(fmt.Sprintf("prim: mismatched sort lengths %d, %d, %d, %d",
			len(keysIn), len(keysOut), len(valuesIn), len(valuesOut)))
	}
	if endBit < 0 || endBit > maxSortKeyBits {
		panic(fmt.Sprintf("prim: invalid end bit %d", endBit))
	}
	if n == 0 {
		return
	}
	w := sortLayout(mem.NewChunk(ws), n)

	device.CopySlice(rec, "sort copy keys", keysOut, keysIn)
	device.CopySlice(rec, "sort copy values", valuesOut, valuesIn)

	srcKeys, dstKeys := keysOut, w.keys
	srcValues, dstValues := valuesOut, w.values
	passes := jmath.DivCeil(endBit, radixBits)
	for pass := range passes {
		shift := uint(pass * radixBits)
		mask := uint64(1)<<uint(min(radixBits, endBit-int(shift))) - 1
		recordRadixPass(rec, w.hist, srcKeys, dstKeys, srcValues, dstValues, shift, mask)
		srcKeys, dstKeys = dstKeys, srcKeys
		srcValues, dstValues = dstValues, srcValues
	}
	if passes%2 == 1 {
		device.CopySlice(rec, "sort copy back keys", keysOut, w.keys)
		device.CopySlice(rec, "sort copy back values", valuesOut, w.values)
	}
}

func recordRadixPass(
	rec *device.Recording,
	hist []uint32,
	srcKeys, dstKeys []uint64,
	srcValues, dstValues []uint32,
	shift uint,
	mask uint64,
) {
	n := len(srcKeys)
	numBlocks := jmath.DivCeil(n, sortBlockSize)
	digit := func(key uint64) int { return int((key >> shift) & mask) }

	rec.Dispatch("radix histogram", numBlocks, func(b int) {
		start := b * sortBlockSize
		end := min(start+sortBlockSize, n)
		var counts [radixBuckets]uint32
		for _, k := range srcKeys[start:end] {
			counts[digit(k)]++
		}
		for d, c := range counts {
			hist[d*numBlocks+b] = c
		}
	})
	rec.Dispatch("radix offsets", 1, func(int) {
		exclusiveScan(hist)
	})
	rec.Dispatch("radix scatter", numBlocks, func(b int) {
		start := b * sortBlockSize
		end := min(start+sortBlockSize, n)
		var offsets [radixBuckets]uint32
		for d := range offsets {
			offsets[d] = hist[d*numBlocks+b]
		}
		for i := start; i < end; i++ {
			d := digit(srcKeys[i])
			o := offsets[d]
			dstKeys[o] = srcKeys[i]
			dstValues[o] = srcValues[i]
			offsets[d]++
		}
	})
}
