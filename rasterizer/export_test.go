package rasterizer

import "honnef.co/go/splat/mem"

func (f *Frame) Blocks() (geom, bin, img []byte) {
	return f.geomBlock, f.binningBlock, f.imageBlock
}

func ImageStateIn(block []byte, pixels int) (*ImageState, error) {
	return recarve(block, "image", func(c *mem.Chunk) *ImageState {
		return imageStateFromChunk(c, pixels)
	})
}

func BinningStateIn(block []byte, instances int) (*BinningState, error) {
	return recarve(block, "binning", func(c *mem.Chunk) *BinningState {
		return binningStateFromChunk(c, instances)
	})
}

func PointStateIn(block []byte, points int) (*PointState, error) {
	return recarve(block, "point", func(c *mem.Chunk) *PointState {
		return pointStateFromChunk(c, points)
	})
}
