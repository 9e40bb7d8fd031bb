// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelsWithoutColors is returned when rendering with a channel
	// count other than 3 without precomputed colors. Spherical harmonics
	// only produce RGB.
	ErrChannelsWithoutColors = errors.New("rasterizer: channel count other than 3 requires precomputed colors")

	// ErrInvalidInput is returned for missing or malformed scenes, cameras
	// and point clouds.
	ErrInvalidInput = errors.New("rasterizer: invalid input")

	// ErrOutputSize is returned when a caller-provided output buffer has the
	// wrong length.
	ErrOutputSize = errors.New("rasterizer: wrong output size")

	// ErrFrameMismatch is returned when Backward is called with a frame that
	// does not belong to the provided scene and camera.
	ErrFrameMismatch = errors.New("rasterizer: frame does not match inputs")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func checkLen(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrOutputSize, name, got, want)
	}
	return nil
}

func checkOptionalLen(name string, got, want int) error {
	if got == 0 {
		return nil
	}
	return checkLen(name, got, want)
}
