// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import (
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

// RenderBackward runs one thread per pixel, walking the pixel's contributors
// back to front and reconstructing the transmittance from the final value
// recorded by Render. Contributions to per-Gaussian gradients are
// accumulated atomically.
//
// Only the color and alpha images are differentiated. Alpha clamping at
// MaxAlpha is ignored.
func (Reference) RenderBackward(
	rec *device.Recording,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	grads *rasterizer.RenderGrads,
	out *rasterizer.Gradients,
) {
	n := s.Camera.Width * s.Camera.Height
	rec.Dispatch("render backward", n, func(pix int) {
		renderPixelBackward(pix, s, geom, bin, img, grads, out)
	})
}

func renderPixelBackward(
	pix int,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	bin *rasterizer.BinningState,
	img *rasterizer.ImageState,
	grads *rasterizer.RenderGrads,
	out *rasterizer.Gradients,
) {
	w, h := s.Camera.Width, s.Camera.Height
	n := w * h
	x, y := pix%w, pix/w
	px, py := float32(x), float32(y)
	ch := s.Channels
	rng := img.Ranges[s.Grid.TileOfPixel(x, y)]

	finalT := img.FinalT[pix]
	t := finalT
	dLdPixel := channelBuffer(ch)
	behind := channelBuffer(ch)
	for c := range ch {
		dLdPixel[c] = grads.Color[c*n+pix]
		behind[c] = finalT * s.Background[c]
	}
	var dLdAlphaOut float32
	if len(grads.Alpha) > 0 {
		dLdAlphaOut = grads.Alpha[pix]
	}

	// Gradients with respect to pixel coordinates are converted to
	// normalized device coordinates.
	ndcX := 0.5 * float32(w)
	ndcY := 0.5 * float32(h)

	for j := rng.Start + img.NContrib[pix]; j > rng.Start; j-- {
		id := bin.Values[j-1]
		co := geom.ConicOpacity[id]
		alpha, g, dx, dy, ok := gaussianAlpha(co, geom.Means2D[id], px, py)
		if !ok {
			continue
		}
		t /= 1 - alpha
		weight := alpha * t

		var dLdAlpha float32
		for c := range ch {
			color := geom.RGB[int(id)*ch+c]
			dLdAlpha += dLdPixel[c] * (color*t - behind[c]/(1-alpha))
			device.AddFloat32(&out.Colors[int(id)*ch+c], weight*dLdPixel[c])
			behind[c] += color * weight
		}
		dLdAlpha += dLdAlphaOut * finalT / (1 - alpha)

		dLdPower := co[3] * g * dLdAlpha
		dLdDx := dLdPower * (-co[0]*dx - co[1]*dy)
		dLdDy := dLdPower * (-co[2]*dy - co[1]*dx)
		device.AddFloat32(&out.Mean2D[id][0], dLdDx*ndcX)
		device.AddFloat32(&out.Mean2D[id][1], dLdDy*ndcY)
		device.AddFloat32(&out.Conic[id][0], -0.5*dx*dx*dLdPower)
		device.AddFloat32(&out.Conic[id][1], -dx*dy*dLdPower)
		device.AddFloat32(&out.Conic[id][2], -0.5*dy*dy*dLdPower)
		device.AddFloat32(&out.Opacity[id], g*dLdAlpha)
	}
}

// PreprocessBackward runs one thread per Gaussian.
func (Reference) PreprocessBackward(
	rec *device.Recording,
	s *rasterizer.Setting,
	geom *rasterizer.GeometryState,
	out *rasterizer.Gradients,
) {
	rec.Dispatch("preprocess backward", s.Scene.Len(), func(idx int) {
		preprocessGaussianBackward(idx, s, geom, out)
	})
}

func preprocessGaussianBackward(idx int, s *rasterizer.Setting, geom *rasterizer.GeometryState, out *rasterizer.Gradients) {
	if geom.Radii[idx] <= 0 {
		return
	}
	scene := s.Scene
	cam := s.Camera
	mean := jmath.Vec3(scene.Means[idx])
	cov := geom.Cov3D[idx]

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
	dLdCov2D := invert2Backward(conic, out.Conic[idx])
	dLdCov, dLdMean := pr.cov2DBackward(cov, dLdCov2D, s.FocalX, s.FocalY)
	out.Cov3D[idx] = dLdCov

	// Screen position: ndc = hom.xy / hom.w.
	hom, hw := cam.Proj.TransformPointH(mean)
	mw := 1 / (hw + jmath.Epsilon)
	g := out.Mean2D[idx]
	for k := range 3 {
		dx := cam.Proj.At(0, k)*mw - cam.Proj.At(3, k)*hom[0]*mw*mw
		dy := cam.Proj.At(1, k)*mw - cam.Proj.At(3, k)*hom[1]*mw*mw
		dLdMean[k] += g[0]*dx + g[1]*dy
	}
	out.Means[idx] = dLdMean

	if scene.Colors == nil {
		m := scene.NumCoeffs
		var dLdRGB [3]float32
		copy(dLdRGB[:], out.Colors[idx*3:idx*3+3])
		colorFromSHBackward(dLdRGB, geom.Clamped[idx*3:idx*3+3], scene.Degree,
			viewDir(mean, cam.Position), out.SH[idx*m*3:(idx+1)*m*3])
	}

	if scene.Cov3D == nil {
		out.Scales[idx], out.Rotations[idx] = computeCov3DBackward(
			scene.Scales[idx], scene.ScaleFactor(), scene.Rotations[idx], dLdCov)
	}
}
