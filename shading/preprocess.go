// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import (
	"honnef.co/go/curve"
	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

func (Reference) Preprocess(rec *device.Recording, s *rasterizer.Setting, geom *rasterizer.GeometryState) {
	rec.Dispatch("preprocess", s.Scene.Len(), func(idx int) {
		preprocessGaussian(idx, s, geom)
	})
}

func preprocessGaussian(idx int, s *rasterizer.Setting, geom *rasterizer.GeometryState) {
	scene := s.Scene
	cam := s.Camera
	ch := s.Channels

	geom.Depths[idx] = 0
	geom.Radii[idx] = 0
	geom.Means2D[idx] = [2]float32{}
	geom.ViewPoints[idx] = [3]float32{}
	geom.Cov3D[idx] = [6]float32{}
	geom.ConicOpacity[idx] = [4]float32{}
	geom.RayPlanes[idx] = [4]float32{}
	geom.TilesTouched[idx] = 0
	clear(geom.RGB[idx*ch : (idx+1)*ch])
	clear(geom.Clamped[idx*ch : (idx+1)*ch])

	mean := jmath.Vec3(scene.Means[idx])
	if !binning.InFrustum(mean, &cam.View, &cam.Proj) {
		return
	}
	pView := cam.View.TransformPoint(mean)
	hom, w := cam.Proj.TransformPointH(mean)
	pProj := hom.Mul(1 / (w + jmath.Epsilon))

	var cov [6]float32
	if scene.Cov3D != nil {
		cov = scene.Cov3D[idx]
	} else {
		cov = computeCov3D(scene.Scales[idx], scene.ScaleFactor(), scene.Rotations[idx])
	}

	lowPass := float32(LowPass)
	if cam.Prefiltered {
		lowPass = 0
	}
	pr := newProjection(mean, &cam.View, s.FocalX, s.FocalY, cam.TanFovX, cam.TanFovY)
	cov2 := pr.cov2D(cov, lowPass)
	conic, ok := invert2(cov2)
	if !ok {
		return
	}

	r := radius(cov2)
	center := curve.Point{
		X: float64(ndc2Pix(pProj[0], cam.Width)),
		Y: float64(ndc2Pix(pProj[1], cam.Height)),
	}
	rmin, rmax := binning.TileRect(center, int(r), s.Grid)
	area := binning.TileArea(rmin, rmax)
	if area == 0 {
		return
	}

	if scene.Colors != nil {
		copy(geom.RGB[idx*ch:(idx+1)*ch], scene.Colors[idx*ch:(idx+1)*ch])
	} else {
		m := scene.NumCoeffs
		rgb, clamped := colorFromSH(scene.SH[idx*m*3:(idx+1)*m*3], scene.Degree, viewDir(mean, cam.Position))
		copy(geom.RGB[idx*3:idx*3+3], rgb[:])
		copy(geom.Clamped[idx*3:idx*3+3], clamped[:])
	}

	normal := surfaceNormal(scene, idx, &cam.View, pView)

	geom.Depths[idx] = pView[2]
	geom.Radii[idx] = r
	geom.Means2D[idx] = [2]float32{float32(center.X), float32(center.Y)}
	geom.ViewPoints[idx] = pView
	geom.Cov3D[idx] = cov
	geom.ConicOpacity[idx] = [4]float32{conic[0], conic[1], conic[2], scene.Opacities[idx]}
	geom.RayPlanes[idx] = [4]float32{normal[0], normal[1], normal[2], normal.Dot(pView)}
	geom.TilesTouched[idx] = area
}

// surfaceNormal returns the camera-space direction of the shortest axis of
// Gaussian idx, facing the camera. Without scales and rotations, the normal
// faces the camera directly.
func surfaceNormal(scene *rasterizer.Scene, idx int, view *jmath.Mat4, pView jmath.Vec3) jmath.Vec3 {
	var n jmath.Vec3
	if scene.Cov3D != nil {
		n = pView.Mul(-1).Normalize()
	} else {
		scale := scene.Scales[idx]
		axis := 0
		for k := 1; k < 3; k++ {
			if jmath.Abs32(scale[k]) < jmath.Abs32(scale[axis]) {
				axis = k
			}
		}
		rot := quatToMat(scene.Rotations[idx])
		nWorld := jmath.Vec3{rot[0][axis], rot[1][axis], rot[2][axis]}.Normalize()
		n = view.Rotation().MulVec(nWorld)
	}
	if n.Dot(pView) > 0 {
		n = n.Mul(-1)
	}
	return n
}

func (Reference) PreprocessPoints(rec *device.Recording, s *rasterizer.Setting, points *rasterizer.PointCloud, ps *rasterizer.PointState) {
	rec.Dispatch("preprocess points", points.Len(), func(idx int) {
		preprocessPoint(idx, s, points, ps)
	})
}

func preprocessPoint(idx int, s *rasterizer.Setting, points *rasterizer.PointCloud, ps *rasterizer.PointState) {
	cam := s.Camera
	ps.Depths[idx] = 0
	ps.Means2D[idx] = [2]float32{}
	ps.ViewPoints[idx] = [3]float32{}
	ps.TilesTouched[idx] = 0

	p := jmath.Vec3(points.Points[idx])
	if !binning.InFrustum(p, &cam.View, &cam.Proj) {
		return
	}
	pView := cam.View.TransformPoint(p)
	hom, w := cam.Proj.TransformPointH(p)
	pProj := hom.Mul(1 / (w + jmath.Epsilon))
	px := int(jmath.Floor32(ndc2Pix(pProj[0], cam.Width) + 0.5))
	py := int(jmath.Floor32(ndc2Pix(pProj[1], cam.Height) + 0.5))
	if px < 0 || px >= cam.Width || py < 0 || py >= cam.Height {
		return
	}

	ps.Depths[idx] = pView[2]
	ps.Means2D[idx] = [2]float32{float32(px), float32(py)}
	ps.ViewPoints[idx] = pView
	ps.TilesTouched[idx] = 1
}
