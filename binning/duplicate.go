// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package binning

import "fmt"

// Region returns the slots [start, end) reserved for thread i, given offsets,
// the inclusive prefix sum of the per-thread slot counts.
//
// Because the counts are non-negative, the regions of distinct threads are
// disjoint and together cover exactly [0, offsets[len(offsets)-1]), so every
// thread may fill its own region without synchronization.
func Region(offsets []uint32, i int) (start, end uint32) {
	if i > 0 {
		start = offsets[i-1]
	}
	return start, offsets[i]
}

// DuplicateWithKeys emits one (key, value) pair for every tile overlapped by
// primitive idx. Primitives with a non-positive radius are culled and emit
// nothing. The number of pairs has to match the primitive's tile count that
// offsets was computed from.
func DuplicateWithKeys(
	idx int,
	means2D [][2]float32,
	depths []float32,
	offsets []uint32,
	radii []int32,
	keys []uint64,
	values []uint32,
	grid Grid,
) {
	if radii[idx] <= 0 {
		return
	}
	slot, end := Region(offsets, idx)
	rmin, rmax := TileRect(Pt(means2D[idx]), int(radii[idx]), grid)
	for y := rmin[1]; y < rmax[1]; y++ {
		for x := rmin[0]; x < rmax[0]; x++ {
			if slot == end {
				panic(fmt.Sprintf("binning: primitive %d overlaps more tiles than it reserved", idx))
			}
			keys[slot] = MakeKey(grid.Tile(x, y), depths[idx])
			values[slot] = uint32(idx)
			slot++
		}
	}
	if slot != end {
		panic(fmt.Sprintf("binning: primitive %d overlaps fewer tiles than it reserved", idx))
	}
}

// DuplicatePointsWithKeys emits the single (key, value) pair of sample point
// idx, keyed by the tile containing it. Points with a zero touch count were
// culled and emit nothing.
func DuplicatePointsWithKeys(
	idx int,
	means2D [][2]float32,
	depths []float32,
	offsets []uint32,
	keys []uint64,
	values []uint32,
	grid Grid,
) {
	start, end := Region(offsets, idx)
	switch end - start {
	case 0:
	case 1:
		keys[start] = MakeKey(PointTile(Pt(means2D[idx]), grid), depths[idx])
		values[start] = uint32(idx)
	default:
		panic(fmt.Sprintf("binning: point %d reserved %d slots", idx, end-start))
	}
}
