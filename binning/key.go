// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package binning

import (
	"math"
	"math/bits"
)

// DepthKey converts a depth to an integer that sorts like the depth.
//
// The conversion reinterprets the IEEE-754 bits of depth, which orders
// correctly only for finite, non-negative values. Negative or NaN depths
// produce keys in an unspecified order; callers must cull such primitives
// before generating keys.
func DepthKey(depth float32) uint32 {
	return math.Float32bits(depth)
}

// MakeKey builds the sort key of one instance: the tile index in the upper 32
// bits and the depth key in the lower 32 bits, so that sorting groups
// instances by tile and orders them front to back inside each tile.
func MakeKey(tile uint32, depth float32) uint64 {
	return uint64(tile)<<32 | uint64(DepthKey(depth))
}

// KeyTile returns the tile index stored in key.
func KeyTile(key uint64) uint32 {
	return uint32(key >> 32)
}

// KeyDepth returns the depth stored in key.
func KeyDepth(key uint64) float32 {
	return math.Float32frombits(uint32(key))
}

// SignificantBits returns the number of low key bits a sort has to consider
// for a grid of numTiles tiles.
func SignificantBits(numTiles uint32) int {
	if numTiles == 0 {
		return 32
	}
	return 32 + bits.Len32(numTiles-1)
}
