// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gfx converts colors into the formats consumed by the rasterizer.
package gfx

import (
	"honnef.co/go/color"
)

// Background returns the premultiplied linear sRGB components of c, padded
// with zeros or truncated to channels entries. A nil color is black.
func Background(c *color.Color, channels int) []float32 {
	out := make([]float32, channels)
	if c == nil {
		return out
	}
	premul := Premul32(c)
	copy(out, premul[:3])
	return out
}

func Premul32(c *color.Color) [4]float32 {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return [4]float32{
		float32(r * a),
		float32(g * a),
		float32(b * a),
		float32(a),
	}
}
