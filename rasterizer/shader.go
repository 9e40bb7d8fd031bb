// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
)

// Setting is the per-call context shared by all shader stages.
type Setting struct {
	Scene    *Scene
	Camera   *Camera
	Grid     binning.Grid
	Channels int
	// Background holds Channels premultiplied components.
	Background []float32
	FocalX     float32
	FocalY     float32
}

// A Shader computes the per-Gaussian and per-pixel math of the pipeline.
// Every method records its kernels into rec; nothing runs until the
// orchestrator executes the recording, and every state passed in is only
// written by kernels.
type Shader interface {
	// Preprocess fills geom for every Gaussian: depth, radius, screen
	// position, conic and opacity, colors, ray plane and tile count. Culled
	// Gaussians must have a radius and tile count of zero, and the tile count
	// of the others must equal the area of binning.TileRect for their
	// position and radius.
	Preprocess(rec *device.Recording, s *Setting, geom *GeometryState)

	// PreprocessPoints projects points into ps. Every point gets a tile count
	// of one if it falls inside the image and in front of the near plane, and
	// zero otherwise.
	PreprocessPoints(rec *device.Recording, s *Setting, points *PointCloud, ps *PointState)

	// Render blends the depth-sorted instances of every tile into out and
	// records per-pixel state in img for the backward pass.
	Render(rec *device.Recording, s *Setting, geom *GeometryState, bin *BinningState, img *ImageState, out *RenderOutput)

	// Integrate merges the depth-sorted Gaussian and point lists of every
	// tile and writes per-point values into out.
	Integrate(
		rec *device.Recording,
		s *Setting,
		geom *GeometryState,
		bin *BinningState,
		img *ImageState,
		ps *PointState,
		pointBin *BinningState,
		out *IntegrateOutput,
	)

	// RenderBackward propagates image gradients to the screen-space
	// parameters of every Gaussian, replaying the blending recorded by
	// Render.
	RenderBackward(
		rec *device.Recording,
		s *Setting,
		geom *GeometryState,
		bin *BinningState,
		img *ImageState,
		grads *RenderGrads,
		out *Gradients,
	)

	// PreprocessBackward propagates screen-space gradients to the scene
	// parameters.
	PreprocessBackward(rec *device.Recording, s *Setting, geom *GeometryState, out *Gradients)
}
