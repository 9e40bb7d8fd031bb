// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import "honnef.co/go/splat/jmath"

const (
	shC0 = 0.28209479177387814
	shC1 = 0.4886025119029199
)

var (
	shC2 = [5]float32{
		1.0925484305920792,
		-1.0925484305920792,
		0.31539156525252005,
		-1.0925484305920792,
		0.5462742152960396,
	}
	shC3 = [7]float32{
		-0.5900435899266435,
		2.890611442640554,
		-0.4570457994644658,
		0.3731763325901154,
		-0.4570457994644658,
		1.445305721320277,
		-0.5900435899266435,
	}
)

// shBasis returns the weights of the first (degree+1)² real spherical
// harmonics for the unit direction dir. Unused entries are zero.
func shBasis(dir jmath.Vec3, degree int) [16]float32 {
	var b [16]float32
	b[0] = shC0
	if degree < 1 {
		return b
	}
	x, y, z := dir[0], dir[1], dir[2]
	b[1] = -shC1 * y
	b[2] = shC1 * z
	b[3] = -shC1 * x
	if degree < 2 {
		return b
	}
	xx, yy, zz := x*x, y*y, z*z
	xy, yz, xz := x*y, y*z, x*z
	b[4] = shC2[0] * xy
	b[5] = shC2[1] * yz
	b[6] = shC2[2] * (2*zz - xx - yy)
	b[7] = shC2[3] * xz
	b[8] = shC2[4] * (xx - yy)
	if degree < 3 {
		return b
	}
	b[9] = shC3[0] * y * (3*xx - yy)
	b[10] = shC3[1] * xy * z
	b[11] = shC3[2] * y * (4*zz - xx - yy)
	b[12] = shC3[3] * z * (2*zz - 3*xx - 3*yy)
	b[13] = shC3[4] * x * (4*zz - xx - yy)
	b[14] = shC3[5] * z * (xx - yy)
	b[15] = shC3[6] * x * (xx - 3*yy)
	return b
}

func numBasis(degree int) int {
	return (degree + 1) * (degree + 1)
}

// viewDir returns the normalized direction from the camera to mean.
func viewDir(mean, camPos jmath.Vec3) jmath.Vec3 {
	return mean.Sub(camPos).Normalize()
}

// colorFromSH evaluates the RGB color of a Gaussian with coefficients sh,
// stored as RGB triples, offset by one half and clamped at zero. clamped
// reports the channels that were clamped.
func colorFromSH(sh []float32, degree int, dir jmath.Vec3) (rgb [3]float32, clamped [3]bool) {
	basis := shBasis(dir, degree)
	for ch := range 3 {
		v := float32(0.5)
		for k := range numBasis(degree) {
			v += basis[k] * sh[k*3+ch]
		}
		if v < 0 {
			v = 0
			clamped[ch] = true
		}
		rgb[ch] = v
	}
	return rgb, clamped
}

// colorFromSHBackward writes the gradient of the loss with respect to sh,
// given the gradient with respect to the color. The view direction is
// treated as constant.
func colorFromSHBackward(dLdRGB [3]float32, clamped []bool, degree int, dir jmath.Vec3, dLdSH []float32) {
	basis := shBasis(dir, degree)
	for ch := range 3 {
		g := dLdRGB[ch]
		if clamped[ch] {
			g = 0
		}
		for k := range numBasis(degree) {
			dLdSH[k*3+ch] = basis[k] * g
		}
	}
}
