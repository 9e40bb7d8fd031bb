// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package shading implements the projection, blending and integration math
// of 3D Gaussian splatting for the rasterizer.
//
// Gaussians are projected with the local affine approximation of the
// perspective projection (EWA splatting), colored by spherical harmonics of
// degree up to three, and blended front to back per pixel.
package shading

import (
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/rasterizer"
)

const (
	// LowPass is added to the diagonal of every screen-space covariance so
	// that each Gaussian covers at least about one pixel.
	LowPass = 0.3
	// MinAlpha is the opacity below which a Gaussian is skipped for a pixel.
	MinAlpha = 1.0 / 255.0
	// MaxAlpha caps the opacity of a single Gaussian.
	MaxAlpha = 0.99
	// MinTransmittance terminates blending of a pixel.
	MinTransmittance = 0.0001
)

// Reference is the reference implementation of rasterizer.Shader.
type Reference struct{}

var _ rasterizer.Shader = Reference{}

// gaussianAlpha returns the opacity of a Gaussian with conic and opacity co,
// centered at center, at pixel (px, py), and the value of the unnormalized
// Gaussian. ok is false if the Gaussian does not contribute to the pixel.
func gaussianAlpha(co [4]float32, center [2]float32, px, py float32) (alpha, g, dx, dy float32, ok bool) {
	dx = center[0] - px
	dy = center[1] - py
	power := -0.5*(co[0]*dx*dx+co[2]*dy*dy) - co[1]*dx*dy
	if power > 0 {
		return 0, 0, dx, dy, false
	}
	g = jmath.Exp32(power)
	alpha = min(MaxAlpha, co[3]*g)
	if alpha < MinAlpha {
		return 0, 0, dx, dy, false
	}
	return alpha, g, dx, dy, true
}

// pixelRay returns the camera-space direction, with unit z, through the
// center of pixel (px, py).
func pixelRay(s *rasterizer.Setting, px, py float32) jmath.Vec3 {
	cx := float32(s.Camera.Width-1) / 2
	cy := float32(s.Camera.Height-1) / 2
	return jmath.Vec3{(px - cx) / s.FocalX, (py - cy) / s.FocalY, 1}
}

// rayDepth returns the depth at which the ray dir intersects plane, falling
// back to fallback for rays parallel to the plane or intersections behind the
// camera.
func rayDepth(plane [4]float32, dir jmath.Vec3, fallback float32) float32 {
	n := jmath.Vec3{plane[0], plane[1], plane[2]}
	den := n.Dot(dir)
	if jmath.Abs32(den) < 1e-6 {
		return fallback
	}
	t := plane[3] / den
	if !(t > 0) {
		return fallback
	}
	return t
}

// channelBuffer returns a zeroed accumulator for ch channels.
func channelBuffer(ch int) []float32 {
	if ch <= 4 {
		var buf [4]float32
		return buf[:ch]
	}
	return make([]float32, ch)
}
