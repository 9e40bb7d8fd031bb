// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"fmt"

	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/mem"
	"honnef.co/go/splat/prim"
)

// GeometryState holds the per-Gaussian results of preprocessing.
type GeometryState struct {
	Depths       []float32
	Clamped      []bool
	Radii        []int32
	Means2D      [][2]float32
	ViewPoints   [][3]float32
	Cov3D        [][6]float32
	ConicOpacity [][4]float32
	RGB          []float32
	// RayPlanes holds the camera-space plane through every Gaussian's center
	// orthogonal to its shortest axis, as (normal, normal·center).
	RayPlanes     [][4]float32
	TilesTouched  []uint32
	PointOffsets  []uint32
	ScanWorkspace []byte
}

func geometryStateFromChunk(c *mem.Chunk, p, channels int) *GeometryState {
	return &GeometryState{
		Depths:        mem.Obtain[float32](c, p, mem.Alignment),
		Clamped:       mem.Obtain[bool](c, p*channels, mem.Alignment),
		Radii:         mem.Obtain[int32](c, p, mem.Alignment),
		Means2D:       mem.Obtain[[2]float32](c, p, mem.Alignment),
		ViewPoints:    mem.Obtain[[3]float32](c, p, mem.Alignment),
		Cov3D:         mem.Obtain[[6]float32](c, p, mem.Alignment),
		ConicOpacity:  mem.Obtain[[4]float32](c, p, mem.Alignment),
		RGB:           mem.Obtain[float32](c, p*channels, mem.Alignment),
		RayPlanes:     mem.Obtain[[4]float32](c, p, mem.Alignment),
		TilesTouched:  mem.Obtain[uint32](c, p, mem.Alignment),
		PointOffsets:  mem.Obtain[uint32](c, p, mem.Alignment),
		ScanWorkspace: mem.Obtain[byte](c, prim.InclusiveSumWorkspace(p), mem.Alignment),
	}
}

// PointState holds the per-point results of projecting a point cloud.
type PointState struct {
	Depths        []float32
	Means2D       [][2]float32
	ViewPoints    [][3]float32
	TilesTouched  []uint32
	PointOffsets  []uint32
	ScanWorkspace []byte
}

func pointStateFromChunk(c *mem.Chunk, pn int) *PointState {
	return &PointState{
		Depths:        mem.Obtain[float32](c, pn, mem.Alignment),
		Means2D:       mem.Obtain[[2]float32](c, pn, mem.Alignment),
		ViewPoints:    mem.Obtain[[3]float32](c, pn, mem.Alignment),
		TilesTouched:  mem.Obtain[uint32](c, pn, mem.Alignment),
		PointOffsets:  mem.Obtain[uint32](c, pn, mem.Alignment),
		ScanWorkspace: mem.Obtain[byte](c, prim.InclusiveSumWorkspace(pn), mem.Alignment),
	}
}

// BinningState holds the instance list before and after sorting.
type BinningState struct {
	KeysUnsorted   []uint64
	ValuesUnsorted []uint32
	Keys           []uint64
	Values         []uint32
	SortWorkspace  []byte
}

func binningStateFromChunk(c *mem.Chunk, r int) *BinningState {
	return &BinningState{
		KeysUnsorted:   mem.Obtain[uint64](c, r, mem.Alignment),
		ValuesUnsorted: mem.Obtain[uint32](c, r, mem.Alignment),
		Keys:           mem.Obtain[uint64](c, r, mem.Alignment),
		Values:         mem.Obtain[uint32](c, r, mem.Alignment),
		SortWorkspace:  mem.Obtain[byte](c, prim.SortPairsWorkspace(r), mem.Alignment),
	}
}

// ImageState holds per-tile ranges and per-pixel blending state. The range
// tables have one entry per pixel, of which only the first tile count
// entries are used.
//
// The Integrate fields are written by Integrate only, so integrating does not
// disturb the state Backward replays.
type ImageState struct {
	Ranges            []binning.Range
	PointRanges       []binning.Range
	NContrib          []uint32
	FinalT            []float32
	AccumDepth        []float32
	AccumCoord        [][3]float32
	AccumNormalLength []float32

	IntegrateT      []float32
	IntegrateCoord  [][3]float32
	IntegrateWeight []float32
}

func imageStateFromChunk(c *mem.Chunk, n int) *ImageState {
	return &ImageState{
		Ranges:            mem.Obtain[binning.Range](c, n, mem.Alignment),
		PointRanges:       mem.Obtain[binning.Range](c, n, mem.Alignment),
		NContrib:          mem.Obtain[uint32](c, n, mem.Alignment),
		FinalT:            mem.Obtain[float32](c, n, mem.Alignment),
		AccumDepth:        mem.Obtain[float32](c, n, mem.Alignment),
		AccumCoord:        mem.Obtain[[3]float32](c, n, mem.Alignment),
		AccumNormalLength: mem.Obtain[float32](c, n, mem.Alignment),
		IntegrateT:        mem.Obtain[float32](c, n, mem.Alignment),
		IntegrateCoord:    mem.Obtain[[3]float32](c, n, mem.Alignment),
		IntegrateWeight:   mem.Obtain[float32](c, n, mem.Alignment),
	}
}

// GeometryStateSize returns the block size Forward requests for the geometry
// state of p Gaussians.
func GeometryStateSize(p, channels int) int {
	return mem.Required(func(c *mem.Chunk) { geometryStateFromChunk(c, p, channels) })
}

// PointStateSize returns the block size Integrate requests for pn points.
func PointStateSize(pn int) int {
	return mem.Required(func(c *mem.Chunk) { pointStateFromChunk(c, pn) })
}

// BinningStateSize returns the block size requested for r instances.
func BinningStateSize(r int) int {
	return mem.Required(func(c *mem.Chunk) { binningStateFromChunk(c, r) })
}

// ImageStateSize returns the block size requested for n pixels.
func ImageStateSize(n int) int {
	return mem.Required(func(c *mem.Chunk) { imageStateFromChunk(c, n) })
}

// carve requests a block for layout from resize and replays layout on it.
func carve[S any](resize mem.ResizeFunc, name string, layout func(c *mem.Chunk) *S) (*S, []byte, error) {
	var block []byte
	wrapped := func(size int) ([]byte, error) {
		b, err := resize(size)
		block = b
		return b, err
	}
	c, err := mem.Carve(wrapped, func(c *mem.Chunk) { layout(c) })
	if err != nil {
		return nil, nil, fmt.Errorf("%s state: %w", name, err)
	}
	s := layout(c)
	Logger().Debug("rasterizer: carved state", "state", name, "bytes", c.Offset(), "block", len(block))
	return s, block, nil
}

// recarve replays layout on a block obtained by an earlier call.
func recarve[S any](block []byte, name string, layout func(c *mem.Chunk) *S) (*S, error) {
	if size := mem.Required(func(c *mem.Chunk) { layout(c) }); len(block) < size {
		return nil, fmt.Errorf("%w: %s block has %d bytes, need %d", ErrFrameMismatch, name, len(block), size)
	}
	return layout(mem.NewChunk(block)), nil
}
