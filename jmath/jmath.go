// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package jmath contains float32 helpers and the small amount of linear algebra
// needed by the rasterizer.
package jmath

import (
	"math"

	"golang.org/x/exp/constraints"
)

const Epsilon = 1e-7

func Abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

func Sqrt32(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

func Exp32(f float32) float32 {
	return float32(math.Exp(float64(f)))
}

func Ceil32(f float32) float32 {
	return float32(math.Ceil(float64(f)))
}

func Floor32(f float32) float32 {
	return float32(math.Floor(float64(f)))
}

func IsFinite32(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// AlignUp rounds n up to a multiple of alignment, which has to be a power of
// two.
func AlignUp[T constraints.Integer](n, alignment T) T {
	return (n + alignment - 1) &^ (alignment - 1)
}

func NextMultipleOf[T constraints.Integer](x, y T) T {
	r := x % y
	if r == 0 {
		return x
	} else {
		return x + y - r
	}
}

// DivCeil returns ceil(x / y) for non-negative x and positive y.
func DivCeil[T constraints.Integer](x, y T) T {
	return (x + y - 1) / y
}
