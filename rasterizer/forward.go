// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/mem"
	"honnef.co/go/splat/profiler"
	"honnef.co/go/splat/prim"
)

// Forward renders scene as seen by cam into out. The three resize callbacks
// provide the blocks for the geometry, binning and image state. The returned
// frame refers to these blocks and can be passed to Backward.
func (r *Rasterizer) Forward(
	geomBuf, binningBuf, imageBuf mem.ResizeFunc,
	scene *Scene,
	cam *Camera,
	out *RenderOutput,
) (*Frame, error) {
	if err := r.validate(scene, cam); err != nil {
		return nil, err
	}
	if err := r.validateRenderOutput(scene, cam, out); err != nil {
		return nil, err
	}

	pg := r.profiler.Start("forward")
	defer pg.End()

	s := r.setting(scene, cam)
	var rec device.Recording
	g, err := r.binGaussians(&rec, geomBuf, binningBuf, imageBuf, s, pg)
	if err != nil {
		return nil, err
	}

	r.shader.Render(&rec, s, g.geom, g.bin, g.img, out)
	if len(out.Radii) > 0 {
		device.CopySlice(&rec, "copy radii", out.Radii, g.geom.Radii)
	}
	stage := pg.Start("render")
	err = r.queue.Run(&rec, stage)
	stage.End()
	if err != nil {
		return nil, err
	}

	return &Frame{
		numGaussians: scene.Len(),
		numRendered:  g.numRendered,
		width:        cam.Width,
		height:       cam.Height,
		channels:     r.channels,
		geomBlock:    g.geomBlock,
		binningBlock: g.binningBlock,
		imageBlock:   g.imageBlock,
	}, nil
}

type binnedGaussians struct {
	geom        *GeometryState
	bin         *BinningState
	img         *ImageState
	numRendered int

	geomBlock    []byte
	binningBlock []byte
	imageBlock   []byte
}

// binGaussians lays out the Gaussian states, projects the scene and builds
// the per-tile instance ranges. On return, rec holds the recorded binning
// stages that have not run yet.
func (r *Rasterizer) binGaussians(
	rec *device.Recording,
	geomBuf, binningBuf, imageBuf mem.ResizeFunc,
	s *Setting,
	pg profiler.ProfilerGroup,
) (*binnedGaussians, error) {
	p := s.Scene.Len()
	n := s.Camera.pixels()
	var out binnedGaussians
	var err error

	out.geom, out.geomBlock, err = carve(geomBuf, "geometry", func(c *mem.Chunk) *GeometryState {
		return geometryStateFromChunk(c, p, s.Channels)
	})
	if err != nil {
		return nil, err
	}
	out.img, out.imageBlock, err = carve(imageBuf, "image", func(c *mem.Chunk) *ImageState {
		return imageStateFromChunk(c, n)
	})
	if err != nil {
		return nil, err
	}

	r.shader.Preprocess(rec, s, out.geom)
	prim.InclusiveSum(rec, out.geom.ScanWorkspace, out.geom.TilesTouched, out.geom.PointOffsets)
	stage := pg.Start("preprocess")
	out.numRendered, err = r.queue.MaterializeCount(rec, out.geom.PointOffsets, p-1, stage)
	stage.End()
	if err != nil {
		return nil, err
	}
	Logger().Debug("rasterizer: binned gaussians", "gaussians", p, "instances", out.numRendered)

	numRendered := out.numRendered
	out.bin, out.binningBlock, err = carve(binningBuf, "binning", func(c *mem.Chunk) *BinningState {
		return binningStateFromChunk(c, numRendered)
	})
	if err != nil {
		return nil, err
	}

	geom := out.geom
	rec.Dispatch("duplicate with keys", p, func(i int) {
		binning.DuplicateWithKeys(i, geom.Means2D, geom.Depths, geom.PointOffsets, geom.Radii,
			out.bin.KeysUnsorted, out.bin.ValuesUnsorted, s.Grid)
	})
	recordSortAndRanges(rec, s.Grid, out.bin, out.img.Ranges)
	return &out, nil
}

// recordSortAndRanges records sorting the instances of bin and identifying
// the range of every tile in ranges.
func recordSortAndRanges(rec *device.Recording, grid binning.Grid, bin *BinningState, ranges []binning.Range) {
	numTiles := grid.NumTiles()
	prim.SortPairs(rec, bin.SortWorkspace,
		bin.KeysUnsorted, bin.Keys,
		bin.ValuesUnsorted, bin.Values,
		binning.SignificantBits(numTiles))
	device.ClearSlice(rec, "clear ranges", ranges[:numTiles])
	rec.Dispatch("identify tile ranges", len(bin.Keys), func(i int) {
		binning.IdentifyTileRanges(i, bin.Keys, ranges)
	})
}
