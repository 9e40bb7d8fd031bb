// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import (
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

// Render blends every pixel independently, one thread per pixel.
func (Reference) Render(
	rec *device.Recording,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	out *rasterizer.RenderOutput,
) {
	n := s.Camera.Width * s.Camera.Height
	rec.Dispatch("render", n, func(pix int) {
		renderPixel(pix, s, geom, bin, img, out)
	})
}

func renderPixel(
	pix int,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	out *rasterizer.RenderOutput,
) {
	w := s.Camera.Width
	n := w * s.Camera.Height
	x, y := pix%w, pix/w
	px, py := float32(x), float32(y)
	ch := s.Channels
	rng := img.Ranges[s.Grid.TileOfPixel(x, y)]
	dir := pixelRay(s, px, py)

	acc := channelBuffer(ch)
	t := float32(1)
	var depth float32
	var coord, normal jmath.Vec3
	var contributor, last uint32
	for j := rng.Start; j < rng.End; j++ {
		contributor++
		id := bin.Values[j]
		alpha, _, _, _, ok := gaussianAlpha(geom.ConicOpacity[id], geom.Means2D[id], px, py)
		if !ok {
			continue
		}
		testT := t * (1 - alpha)
		if testT < MinTransmittance {
			break
		}
		weight := alpha * t
		for c := range ch {
			acc[c] += geom.RGB[int(id)*ch+c] * weight
		}
		plane := geom.RayPlanes[id]
		d := rayDepth(plane, dir, geom.Depths[id])
		depth += d * weight
		coord = coord.Add(dir.Mul(d * weight))
		normal = normal.Add(jmath.Vec3{plane[0], plane[1], plane[2]}.Mul(weight))
		t = testT
		last = contributor
	}

	img.FinalT[pix] = t
	img.NContrib[pix] = last
	img.AccumDepth[pix] = depth
	img.AccumCoord[pix] = coord
	img.AccumNormalLength[pix] = normal.Length()

	for c := range ch {
		out.Color[c*n+pix] = acc[c] + t*s.Background[c]
	}
	if len(out.Alpha) > 0 {
		out.Alpha[pix] = 1 - t
	}
	if len(out.Depth) > 0 {
		out.Depth[pix] = depth
	}
	if len(out.Normal) > 0 {
		for c := range 3 {
			out.Normal[c*n+pix] = normal[c]
		}
	}
}
