// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command splat-render renders a Gaussian splatting scene to a PNG file.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	"honnef.co/go/splat/encoding"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/mem"
	"honnef.co/go/splat/profiler"
	"honnef.co/go/splat/rasterizer"
	"honnef.co/go/splat/shading"
)

func main() {
	var (
		in      string
		out     string
		random  int
		seed    uint64
		width   int
		height  int
		fovY    float64
		workers int
		verbose bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-v] (-in <scene.ply> | -random <n>) -o <out.png>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&in, "in", "", "Path to PLY `file` to render")
	flag.IntVar(&random, "random", 0, "Render `n` random Gaussians instead of a file")
	flag.Uint64Var(&seed, "seed", 1, "Seed for -random")
	flag.StringVar(&out, "o", "out.png", "Path to output `file`")
	flag.IntVar(&width, "w", 800, "Image width")
	flag.IntVar(&height, "h", 600, "Image height")
	flag.Float64Var(&fovY, "fov", 60, "Vertical field of view in `degrees`")
	flag.IntVar(&workers, "workers", 0, "Number of worker goroutines")
	flag.BoolVar(&verbose, "v", false, "Be verbose")
	flag.Parse()

	if len(flag.Args()) != 0 || (in == "") == (random == 0) {
		flag.Usage()
		os.Exit(2)
	}

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	var pg profiler.ProfilerGroup
	if verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		rasterizer.SetLogger(logger)
		pg = profiler.NewLogGroup(logger)
	}

	var scene *rasterizer.Scene
	if in != "" {
		f, err := os.Open(in)
		if err != nil {
			dief("Couldn't open scene: %s", err)
		}
		scene, err = encoding.ReadPLY(f)
		f.Close()
		if err != nil {
			dief("Couldn't read scene: %s", err)
		}
	} else {
		scene = randomScene(random, seed)
	}

	tanY := float32(math.Tan(fovY * math.Pi / 360))
	tanX := tanY * float32(width) / float32(height)
	cam := frame(scene, width, height, tanX, tanY)

	r := rasterizer.New(shading.Reference{}, &rasterizer.Options{
		Workers:  workers,
		Profiler: pg,
	})
	defer r.Close()

	var geom, bin, img mem.Block
	output := &rasterizer.RenderOutput{
		Color: make([]float32, 3*width*height),
		Alpha: make([]float32, width*height),
	}
	f, err := r.Forward(geom.Resize, bin.Resize, img.Resize, scene, cam, output)
	if err != nil {
		dief("Couldn't render scene: %s", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "rendered %d Gaussians as %d instances\n", scene.Len(), f.NumRendered())
	}

	if err := writePNG(out, output.Color, width, height); err != nil {
		dief("Couldn't write image: %s", err)
	}
}

// frame returns a camera looking at the centroid of scene from a distance
// that fits its extent into the field of view.
func frame(scene *rasterizer.Scene, width, height int, tanX, tanY float32) *rasterizer.Camera {
	var center jmath.Vec3
	for _, m := range scene.Means {
		center = center.Add(m)
	}
	if n := scene.Len(); n > 0 {
		center = center.Mul(1 / float32(n))
	}
	var extent float32
	for _, m := range scene.Means {
		extent = max(extent, jmath.Vec3(m).Sub(center).Length())
	}
	dist := max(extent/min(tanX, tanY)*1.2, 1)
	eye := center.Sub(jmath.Vec3{0, 0, dist})
	view := jmath.LookAt(eye, center, jmath.Vec3{0, -1, 0})
	proj := jmath.Perspective(tanX, tanY, 0.01, 100*dist).Mul(view)
	return &rasterizer.Camera{
		Width:    width,
		Height:   height,
		View:     view,
		Proj:     proj,
		Position: eye,
		TanFovX:  tanX,
		TanFovY:  tanY,
	}
}

func randomScene(n int, seed uint64) *rasterizer.Scene {
	rng := rand.New(rand.NewPCG(seed, seed))
	const c0 = 0.28209479177387814
	scene := &rasterizer.Scene{
		Means:     make([][3]float32, n),
		Scales:    make([][3]float32, n),
		Rotations: make([][4]float32, n),
		Opacities: make([]float32, n),
		SH:        make([]float32, n*3),
		NumCoeffs: 1,
	}
	for i := range n {
		for k := range 3 {
			scene.Means[i][k] = rng.Float32()*2 - 1
			scene.Scales[i][k] = 0.01 + 0.05*rng.Float32()
			scene.SH[i*3+k] = (rng.Float32() - 0.5) / c0
		}
		q := jmath.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}
		qr := rng.Float32()
		l := jmath.Sqrt32(qr*qr + q.Dot(q))
		scene.Rotations[i] = [4]float32{qr / l, q[0] / l, q[1] / l, q[2] / l}
		scene.Opacities[i] = 0.3 + 0.7*rng.Float32()
	}
	return scene
}

func writePNG(path string, planes []float32, width, height int) error {
	n := width * height
	im := image.NewNRGBA(image.Rect(0, 0, width, height))
	to8 := func(v float32) uint8 {
		return uint8(jmath.Clamp(v, 0, 1)*255 + 0.5)
	}
	for y := range height {
		for x := range width {
			pix := y*width + x
			im.SetNRGBA(x, y, color.NRGBA{
				R: to8(planes[pix]),
				G: to8(planes[n+pix]),
				B: to8(planes[2*n+pix]),
				A: 255,
			})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, im); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
