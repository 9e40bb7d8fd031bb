// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package rasterizer renders Gaussians with a tile-based binning pipeline and
// computes gradients of the rendered images.
//
// Each call lays its intermediate state out inside caller-owned blocks,
// obtained through resize callbacks, instead of allocating device memory.
// A call records the pipeline stages into a device.Recording and executes
// them on the rasterizer's queue. The only synchronization points between
// host and device are the read-backs of instance counts, which size the
// binning state.
package rasterizer

import (
	"fmt"

	"honnef.co/go/splat/binning"
	"honnef.co/go/splat/device"
	"honnef.co/go/splat/gfx"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/profiler"
)

// DefaultChannels is the number of color channels used when Options.Channels
// is zero.
const DefaultChannels = 3

type Options struct {
	// Workers is the number of goroutines running kernels. Zero uses
	// GOMAXPROCS.
	Workers int
	// WorkgroupSize is the number of threads a worker runs at once. Zero
	// uses device.DefaultWorkgroupSize.
	WorkgroupSize int
	// Channels is the number of color channels. Zero means DefaultChannels.
	Channels int
	// Debug logs every executed command at debug level.
	Debug bool
	// Profiler receives one group per call and stage. Nil disables
	// profiling.
	Profiler profiler.ProfilerGroup
}

// Rasterizer runs the pipeline on a device queue. Its methods may be called
// concurrently as long as the calls use distinct blocks.
type Rasterizer struct {
	shader   Shader
	queue    *device.Queue
	channels int
	profiler profiler.ProfilerGroup
}

// New returns a rasterizer using shader for the per-Gaussian math. opts may
// be nil.
func New(shader Shader, opts *Options) *Rasterizer {
	if opts == nil {
		opts = &Options{}
	}
	channels := opts.Channels
	if channels == 0 {
		channels = DefaultChannels
	}
	pg := opts.Profiler
	if pg == nil {
		pg = profiler.Nop{}
	}
	return &Rasterizer{
		shader: shader,
		queue: device.NewQueue(&device.QueueOptions{
			Workers:       opts.Workers,
			WorkgroupSize: opts.WorkgroupSize,
			Debug:         opts.Debug,
		}),
		channels: channels,
		profiler: pg,
	}
}

// Close stops the rasterizer's workers.
func (r *Rasterizer) Close() {
	r.queue.Close()
}

func (r *Rasterizer) Channels() int {
	return r.channels
}

// MarkVisible sets present[i] to whether means[i] lies in front of the
// camera's near plane. It runs independently of the rendering pipeline.
func (r *Rasterizer) MarkVisible(means [][3]float32, view, proj *jmath.Mat4, present []bool) error {
	if err := checkLen("present", len(present), len(means)); err != nil {
		return err
	}
	var rec device.Recording
	rec.Dispatch("mark visible", len(means), func(i int) {
		binning.MarkVisible(i, means, view, proj, present)
	})
	pg := r.profiler.Start("mark visible")
	defer pg.End()
	return r.queue.Run(&rec, pg)
}

func (r *Rasterizer) setting(scene *Scene, cam *Camera) *Setting {
	fx, fy := cam.Focal()
	return &Setting{
		Scene:      scene,
		Camera:     cam,
		Grid:       binning.NewGrid(cam.Width, cam.Height),
		Channels:   r.channels,
		Background: gfx.Background(cam.Background, r.channels),
		FocalX:     fx,
		FocalY:     fy,
	}
}

func (r *Rasterizer) validate(scene *Scene, cam *Camera) error {
	if scene == nil {
		return invalidInput("nil scene")
	}
	if cam == nil {
		return invalidInput("nil camera")
	}
	if cam.Width <= 0 || cam.Height <= 0 {
		return invalidInput("image size %dx%d", cam.Width, cam.Height)
	}
	if !(cam.TanFovX > 0) || !(cam.TanFovY > 0) {
		return invalidInput("field of view tangents %v, %v", cam.TanFovX, cam.TanFovY)
	}
	if r.channels != 3 && scene.Colors == nil {
		return ErrChannelsWithoutColors
	}

	p := scene.Len()
	if len(scene.Opacities) != p {
		return invalidInput("%d opacities for %d Gaussians", len(scene.Opacities), p)
	}
	if scene.Colors != nil {
		if len(scene.Colors) != p*r.channels {
			return invalidInput("%d colors for %d Gaussians with %d channels", len(scene.Colors), p, r.channels)
		}
	} else {
		if scene.Degree < 0 || scene.Degree > MaxSHDegree {
			return invalidInput("spherical harmonics degree %d", scene.Degree)
		}
		if need := (scene.Degree + 1) * (scene.Degree + 1); scene.NumCoeffs < need {
			return invalidInput("%d coefficients for degree %d", scene.NumCoeffs, scene.Degree)
		}
		if len(scene.SH) != p*scene.NumCoeffs*3 {
			return invalidInput("%d SH values for %d Gaussians with %d coefficients", len(scene.SH), p, scene.NumCoeffs)
		}
	}
	if scene.Cov3D != nil {
		if len(scene.Cov3D) != p {
			return invalidInput("%d covariances for %d Gaussians", len(scene.Cov3D), p)
		}
	} else if len(scene.Scales) != p || len(scene.Rotations) != p {
		return invalidInput("%d scales and %d rotations for %d Gaussians", len(scene.Scales), len(scene.Rotations), p)
	}
	return nil
}

func (r *Rasterizer) validateRenderOutput(scene *Scene, cam *Camera, out *RenderOutput) error {
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrOutputSize)
	}
	n := cam.pixels()
	if err := checkLen("color", len(out.Color), r.channels*n); err != nil {
		return err
	}
	if err := checkOptionalLen("alpha", len(out.Alpha), n); err != nil {
		return err
	}
	if err := checkOptionalLen("depth", len(out.Depth), n); err != nil {
		return err
	}
	if err := checkOptionalLen("normal", len(out.Normal), 3*n); err != nil {
		return err
	}
	return checkOptionalLen("radii", len(out.Radii), scene.Len())
}

// Frame carries what Backward needs to replay a Forward call: the blocks
// holding its state and the counts that determined their layout. The blocks
// are owned by the caller and must not be modified between the calls.
type Frame struct {
	numGaussians int
	numRendered  int
	width        int
	height       int
	channels     int

	geomBlock    []byte
	binningBlock []byte
	imageBlock   []byte
}

// NumRendered returns the number of Gaussian-tile instances rendered.
func (f *Frame) NumRendered() int {
	return f.numRendered
}
