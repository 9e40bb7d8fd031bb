// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package binning

// IdentifyTileRanges is the per-thread body of the range finder. Run over
// every index of keys, which has to be sorted, it fills ranges with each
// tile's interval in keys. ranges has to be zeroed beforehand; tiles without
// instances keep [0, 0).
//
// Each tile boundary is detected by exactly one thread, so no two threads
// write the same field.
func IdentifyTileRanges(idx int, keys []uint64, ranges []Range) {
	n := uint32(len(keys))
	curr := KeyTile(keys[idx])
	if idx == 0 {
		ranges[curr].Start = 0
	} else {
		prev := KeyTile(keys[idx-1])
		if curr != prev {
			ranges[prev].End = uint32(idx)
			ranges[curr].Start = uint32(idx)
		}
	}
	if uint32(idx) == n-1 {
		ranges[curr].End = n
	}
}
