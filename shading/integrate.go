// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import (
	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

// Integrate runs one thread per tile. Each thread walks the tile's points in
// depth order and, before emitting a point, blends every Gaussian whose
// center lies in front of it into the tile's pixels. A point thus observes
// the color and opacity accumulated along its pixel's ray up to its own
// depth.
func (Reference) Integrate(
	rec *device.Recording,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	ps *rasterizer.PointState,
	pointBin *rasterizer.BinningState,
	out *rasterizer.IntegrateOutput,
) {
	rec.Dispatch("integrate", int(s.Grid.NumTiles()), func(tile int) {
		integrateTile(uint32(tile), s, geom, bin, img, ps, pointBin, out)
	})
}

func integrateTile(
	tile uint32,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	ps *rasterizer.PointState,
	pointBin *rasterizer.BinningState,
	out *rasterizer.IntegrateOutput,
) {
	pr := img.PointRanges[tile]
	if pr.Len() == 0 {
		return
	}
	gr := img.Ranges[tile]
	w, h := s.Camera.Width, s.Camera.Height
	ch := s.Channels
	x0 := int(tile%s.Grid.X) * binning.TileWidth
	y0 := int(tile/s.Grid.X) * binning.TileHeight
	x1 := min(x0+binning.TileWidth, w)
	y1 := min(y0+binning.TileHeight, h)

	// Per-pixel transmittance, weighted position and weight live in the
	// image state's Integrate fields; colors are local to the tile.
	colors := make([]float32, binning.TileWidth*binning.TileHeight*ch)
	local := func(x, y int) int { return (y-y0)*binning.TileWidth + (x - x0) }
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			pix := y*w + x
			img.IntegrateT[pix] = 1
			img.IntegrateCoord[pix] = [3]float32{}
			img.IntegrateWeight[pix] = 0
		}
	}

	blend := func(id uint32) {
		co := geom.ConicOpacity[id]
		center := geom.Means2D[id]
		plane := geom.RayPlanes[id]
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				pix := y*w + x
				t := img.IntegrateT[pix]
				if t < MinTransmittance {
					continue
				}
				px, py := float32(x), float32(y)
				alpha, _, _, _, ok := gaussianAlpha(co, center, px, py)
				if !ok {
					continue
				}
				testT := t * (1 - alpha)
				if testT < MinTransmittance {
					// Mark the pixel as saturated.
					img.IntegrateT[pix] = testT
					continue
				}
				weight := alpha * t
				l := local(x, y)
				for c := range ch {
					colors[l*ch+c] += geom.RGB[int(id)*ch+c] * weight
				}
				dir := pixelRay(s, px, py)
				d := rayDepth(plane, dir, geom.Depths[id])
				img.IntegrateCoord[pix] = jmath.Vec3(img.IntegrateCoord[pix]).Add(dir.Mul(d * weight))
				img.IntegrateWeight[pix] += weight
				img.IntegrateT[pix] = testT
			}
		}
	}

	g := gr.Start
	for j := pr.Start; j < pr.End; j++ {
		pid := pointBin.Values[j]
		depth := ps.Depths[pid]
		for ; g < gr.End && geom.Depths[bin.Values[g]] < depth; g++ {
			blend(bin.Values[g])
		}

		x, y := int(ps.Means2D[pid][0]), int(ps.Means2D[pid][1])
		pix := y*w + x
		l := local(x, y)
		copy(out.Color[int(pid)*ch:int(pid+1)*ch], colors[l*ch:(l+1)*ch])
		alpha := 1 - img.IntegrateT[pix]
		if img.IntegrateT[pix] < MinTransmittance {
			alpha = 1
		}
		if len(out.Alpha) > 0 {
			out.Alpha[pid] = alpha
		}
		if len(out.Coord) > 0 {
			if weight := img.IntegrateWeight[pix]; weight > 0 {
				out.Coord[pid] = jmath.Vec3(img.IntegrateCoord[pix]).Mul(1 / weight)
			}
		}
		if len(out.SDF) > 0 {
			out.SDF[pid] = 0.5 - alpha
		}
	}
}
