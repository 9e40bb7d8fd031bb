// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package binning turns screen-projected primitives into per-tile,
// depth-ordered work lists.
package binning

import (
	"structs"

	"honnef.co/go/curve"
	"honnef.co/go/splat/jmath"
)

const (
	TileWidth  = 16
	TileHeight = 16
)

// Range is the half-open interval of a tile inside the sorted instance list.
type Range struct {
	_ structs.HostLayout

	Start uint32
	End   uint32
}

func (r Range) Len() int {
	return int(r.End - r.Start)
}

// Grid describes the tiling of an image.
type Grid struct {
	X uint32
	Y uint32
}

// NewGrid returns the tile grid covering an image of the given size.
func NewGrid(width, height int) Grid {
	return Grid{
		X: uint32(jmath.DivCeil(width, TileWidth)),
		Y: uint32(jmath.DivCeil(height, TileHeight)),
	}
}

func (g Grid) NumTiles() uint32 {
	return g.X * g.Y
}

// Tile returns the index of tile (x, y).
func (g Grid) Tile(x, y uint32) uint32 {
	return y*g.X + x
}

// TileOfPixel returns the index of the tile containing pixel (px, py).
func (g Grid) TileOfPixel(px, py int) uint32 {
	return g.Tile(uint32(px/TileWidth), uint32(py/TileHeight))
}

// Bounds returns the grid as a rectangle in tile units.
func (g Grid) Bounds() curve.Rect {
	return curve.Rect{X1: float64(g.X), Y1: float64(g.Y)}
}

// Footprint returns the square of pixels within radius of p.
func Footprint(p curve.Point, radius int) curve.Rect {
	d := 2 * float64(radius)
	return curve.NewRectFromCenter(p, curve.Sz(d, d))
}

// TileRect returns the rectangle of tiles [min, max) that the footprint of
// the given radius around p overlaps, clamped to the grid.
func TileRect(p curve.Point, radius int, g Grid) (rmin, rmax [2]uint32) {
	fp := Footprint(p, radius)
	tiles := curve.Rect{
		X0: fp.X0 / TileWidth,
		Y0: fp.Y0 / TileHeight,
		X1: (fp.X1 + TileWidth - 1) / TileWidth,
		Y1: (fp.Y1 + TileHeight - 1) / TileHeight,
	}.Floor().Intersect(g.Bounds())
	// Intersect keeps X0 of rectangles right of the grid.
	rmin[0] = uint32(min(tiles.X0, float64(g.X)))
	rmin[1] = uint32(min(tiles.Y0, float64(g.Y)))
	rmax[0] = uint32(min(tiles.X1, float64(g.X)))
	rmax[1] = uint32(min(tiles.Y1, float64(g.Y)))
	return rmin, rmax
}

// TileArea returns the number of tiles in the rectangle [rmin, rmax).
func TileArea(rmin, rmax [2]uint32) uint32 {
	return (rmax[0] - rmin[0]) * (rmax[1] - rmin[1])
}

// PointTile returns the tile containing p, clamped to the grid.
func PointTile(p curve.Point, g Grid) uint32 {
	t := curve.Pt(p.X/TileWidth, p.Y/TileHeight).Floor()
	x := uint32(jmath.Clamp(int(t.X), 0, int(g.X)-1))
	y := uint32(jmath.Clamp(int(t.Y), 0, int(g.Y)-1))
	return g.Tile(x, y)
}

// Pt converts a stored screen position.
func Pt(p [2]float32) curve.Point {
	return curve.Pt(float64(p[0]), float64(p[1]))
}
