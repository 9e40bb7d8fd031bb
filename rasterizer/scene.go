// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"honnef.co/go/color"
	"honnef.co/go/splat/jmath"
)

// MaxSHDegree is the highest supported spherical harmonics degree.
const MaxSHDegree = 3

// Scene is a set of Gaussians in world space.
type Scene struct {
	Means     [][3]float32
	Scales    [][3]float32
	Rotations [][4]float32 // quaternions as (r, x, y, z)
	Opacities []float32

	// SH holds NumCoeffs RGB coefficients per Gaussian, indexed as
	// SH[(i*NumCoeffs+k)*3+channel]. Only the first (Degree+1)² coefficients
	// are evaluated.
	SH        []float32
	Degree    int
	NumCoeffs int

	// Colors, if not nil, holds Channels precomputed colors per Gaussian and
	// replaces SH.
	Colors []float32
	// Cov3D, if not nil, holds precomputed world-space covariances and
	// replaces Scales and Rotations.
	Cov3D [][6]float32

	// ScaleModifier multiplies all scales. Zero is treated as 1.
	ScaleModifier float32
}

func (s *Scene) Len() int {
	return len(s.Means)
}

// ScaleFactor returns the effective scale modifier.
func (s *Scene) ScaleFactor() float32 {
	if s.ScaleModifier == 0 {
		return 1
	}
	return s.ScaleModifier
}

// Camera describes the view a scene is rasterized from.
type Camera struct {
	Width  int
	Height int

	// View maps world space to camera space, with z pointing forward.
	View jmath.Mat4
	// Proj maps world space to clip space, i.e. it includes View.
	Proj     jmath.Mat4
	Position jmath.Vec3

	TanFovX float32
	TanFovY float32

	// Prefiltered marks scenes whose covariances already include the
	// screen-space low-pass filter. It is passed through to the shader.
	Prefiltered bool

	// Background is composited behind all Gaussians. Nil means black.
	Background *color.Color
}

// Focal returns the focal lengths in pixels.
func (cam *Camera) Focal() (fx, fy float32) {
	return float32(cam.Width) / (2 * cam.TanFovX), float32(cam.Height) / (2 * cam.TanFovY)
}

func (cam *Camera) pixels() int {
	return cam.Width * cam.Height
}

// PointCloud is a set of sample points integrated against a scene.
type PointCloud struct {
	Points [][3]float32
}

func (pc *PointCloud) Len() int {
	return len(pc.Points)
}

// RenderOutput receives the images produced by Forward. All images are
// stored planar, one Height×Width plane per channel. Depth, Normal and Radii
// are optional.
type RenderOutput struct {
	Color  []float32 // Channels planes
	Alpha  []float32 // 1 plane
	Depth  []float32 // 1 plane
	Normal []float32 // 3 planes
	Radii  []int32   // one per Gaussian
}

// RenderGrads holds the gradients of the loss with respect to the images
// produced by Forward. Alpha is optional.
type RenderGrads struct {
	Color []float32
	Alpha []float32
}

// Gradients receives the gradients computed by Backward. Depending on the
// scene, either SH or nothing is written for colors, and either Scales and
// Rotations or nothing beyond Cov3D for shapes.
type Gradients struct {
	// Mean2D is with respect to normalized device coordinates.
	Mean2D    [][2]float32
	Conic     [][3]float32 // (xx, xy, yy) entries of the inverse 2D covariance
	Opacity   []float32
	Colors    []float32
	Means     [][3]float32
	Cov3D     [][6]float32
	SH        []float32
	Scales    [][3]float32
	Rotations [][4]float32
}

// IntegrateOutput receives the per-point values produced by Integrate.
type IntegrateOutput struct {
	Color []float32    // Channels per point
	Alpha []float32    // accumulated opacity in front of the point
	Coord [][3]float32 // opacity-weighted camera-space surface position
	SDF   []float32
}
