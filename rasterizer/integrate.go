// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"fmt"

	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/mem"
	"honnef.co/go/splat/prim"
)

// Integrate evaluates the scene at every point of points, as seen by cam, and
// writes per-point values into out. It runs the binning pipeline of Forward
// for the Gaussians and a second one for the points, then merges both sorted
// lists tile by tile. Points outside the image or behind the near plane keep
// zeroed outputs.
//
// Integrate bins the Gaussians into the given geometry, binning and image
// blocks again. A Frame over the same blocks stays valid for Backward only
// if scene and cam are those of its Forward call.
//
// Integrate returns the number of Gaussian-tile instances.
func (r *Rasterizer) Integrate(
	geomBuf, binningBuf, imageBuf, pointBuf, pointBinningBuf mem.ResizeFunc,
	scene *Scene,
	cam *Camera,
	points *PointCloud,
	out *IntegrateOutput,
) (int, error) {
	if err := r.validate(scene, cam); err != nil {
		return 0, err
	}
	if points == nil {
		return 0, invalidInput("nil point cloud")
	}
	if err := r.validateIntegrateOutput(points, out); err != nil {
		return 0, err
	}

	pg := r.profiler.Start("integrate")
	defer pg.End()

	s := r.setting(scene, cam)
	var rec device.Recording
	g, err := r.binGaussians(&rec, geomBuf, binningBuf, imageBuf, s, pg)
	if err != nil {
		return 0, err
	}

	pn := points.Len()
	ps, _, err := carve(pointBuf, "point", func(c *mem.Chunk) *PointState {
		return pointStateFromChunk(c, pn)
	})
	if err != nil {
		return 0, err
	}
	r.shader.PreprocessPoints(&rec, s, points, ps)
	prim.InclusiveSum(&rec, ps.ScanWorkspace, ps.TilesTouched, ps.PointOffsets)
	stage := pg.Start("preprocess points")
	numPoints, err := r.queue.MaterializeCount(&rec, ps.PointOffsets, pn-1, stage)
	stage.End()
	if err != nil {
		return 0, err
	}
	Logger().Debug("rasterizer: binned points", "points", pn, "instances", numPoints)

	pbin, _, err := carve(pointBinningBuf, "point binning", func(c *mem.Chunk) *BinningState {
		return binningStateFromChunk(c, numPoints)
	})
	if err != nil {
		return 0, err
	}
	rec.Dispatch("duplicate points with keys", pn, func(i int) {
		binning.DuplicatePointsWithKeys(i, ps.Means2D, ps.Depths, ps.PointOffsets,
			pbin.KeysUnsorted, pbin.ValuesUnsorted, s.Grid)
	})
	recordSortAndRanges(&rec, s.Grid, pbin, g.img.PointRanges)

	device.ClearSlice(&rec, "clear integrated color", out.Color)
	device.ClearSlice(&rec, "clear integrated alpha", out.Alpha)
	device.ClearSlice(&rec, "clear integrated coord", out.Coord)
	device.ClearSlice(&rec, "clear integrated sdf", out.SDF)
	r.shader.Integrate(&rec, s, g.geom, g.bin, g.img, ps, pbin, out)

	stage = pg.Start("integrate")
	err = r.queue.Run(&rec, stage)
	stage.End()
	if err != nil {
		return 0, err
	}
	return g.numRendered, nil
}

func (r *Rasterizer) validateIntegrateOutput(points *PointCloud, out *IntegrateOutput) error {
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrOutputSize)
	}
	pn := points.Len()
	if err := checkLen("integrated color", len(out.Color), pn*r.channels); err != nil {
		return err
	}
	if err := checkOptionalLen("integrated alpha", len(out.Alpha), pn); err != nil {
		return err
	}
	if err := checkOptionalLen("integrated coord", len(out.Coord), pn); err != nil {
		return err
	}
	return checkOptionalLen("integrated sdf", len(out.SDF), pn)
}
