// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"fmt"

	"honnef.co/go/splat/device"
	"honnef.co/go/splat/mem"
)

// Backward computes the gradients of the loss with respect to the scene
// parameters, given the gradients with respect to the images rendered by the
// Forward call that returned frame. scene and cam must be the ones passed to
// that call. out is zeroed before accumulation.
//
// Backward replays the recorded state; it neither sorts nor bins again.
func (r *Rasterizer) Backward(frame *Frame, scene *Scene, cam *Camera, grads *RenderGrads, out *Gradients) error {
	if frame == nil {
		return invalidInput("nil frame")
	}
	if err := r.validate(scene, cam); err != nil {
		return err
	}
	if frame.numGaussians != scene.Len() || frame.width != cam.Width || frame.height != cam.Height ||
		frame.channels != r.channels {
		return fmt.Errorf("%w: frame of %d Gaussians at %dx%d with %d channels",
			ErrFrameMismatch, frame.numGaussians, frame.width, frame.height, frame.channels)
	}
	if err := r.validateGradients(scene, cam, grads, out); err != nil {
		return err
	}

	pg := r.profiler.Start("backward")
	defer pg.End()

	p := frame.numGaussians
	geom, err := recarve(frame.geomBlock, "geometry", func(c *mem.Chunk) *GeometryState {
		return geometryStateFromChunk(c, p, frame.channels)
	})
	if err != nil {
		return err
	}
	bin, err := recarve(frame.binningBlock, "binning", func(c *mem.Chunk) *BinningState {
		return binningStateFromChunk(c, frame.numRendered)
	})
	if err != nil {
		return err
	}
	img, err := recarve(frame.imageBlock, "image", func(c *mem.Chunk) *ImageState {
		return imageStateFromChunk(c, frame.width*frame.height)
	})
	if err != nil {
		return err
	}

	s := r.setting(scene, cam)
	var rec device.Recording
	clearGradients(&rec, out)
	r.shader.RenderBackward(&rec, s, geom, bin, img, grads, out)
	r.shader.PreprocessBackward(&rec, s, geom, out)
	return r.queue.Run(&rec, pg)
}

func (r *Rasterizer) validateGradients(scene *Scene, cam *Camera, grads *RenderGrads, out *Gradients) error {
	if grads == nil || out == nil {
		return fmt.Errorf("%w: nil gradients", ErrOutputSize)
	}
	n := cam.pixels()
	p := scene.Len()
	checks := []struct {
		name      string
		got, want int
	}{
		{"color gradient", len(grads.Color), r.channels * n},
		{"mean2D gradient", len(out.Mean2D), p},
		{"conic gradient", len(out.Conic), p},
		{"opacity gradient", len(out.Opacity), p},
		{"colors gradient", len(out.Colors), p * r.channels},
		{"means gradient", len(out.Means), p},
		{"cov3D gradient", len(out.Cov3D), p},
	}
	for _, c := range checks {
		if err := checkLen(c.name, c.got, c.want); err != nil {
			return err
		}
	}
	if err := checkOptionalLen("alpha gradient", len(grads.Alpha), n); err != nil {
		return err
	}
	if scene.Colors == nil {
		if err := checkLen("SH gradient", len(out.SH), len(scene.SH)); err != nil {
			return err
		}
	}
	if scene.Cov3D == nil {
		if err := checkLen("scales gradient", len(out.Scales), p); err != nil {
			return err
		}
		if err := checkLen("rotations gradient", len(out.Rotations), p); err != nil {
			return err
		}
	}
	return nil
}

func clearGradients(rec *device.Recording, out *Gradients) {
	device.ClearSlice(rec, "clear mean2D gradient", out.Mean2D)
	device.ClearSlice(rec, "clear conic gradient", out.Conic)
	device.ClearSlice(rec, "clear opacity gradient", out.Opacity)
	device.ClearSlice(rec, "clear colors gradient", out.Colors)
	device.ClearSlice(rec, "clear means gradient", out.Means)
	device.ClearSlice(rec, "clear cov3D gradient", out.Cov3D)
	device.ClearSlice(rec, "clear SH gradient", out.SH)
	device.ClearSlice(rec, "clear scales gradient", out.Scales)
	device.ClearSlice(rec, "clear rotations gradient", out.Rotations)
}
