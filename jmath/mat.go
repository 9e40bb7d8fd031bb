// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package jmath

// Mat4 is a 4x4 matrix stored in column-major order, i.e. element (row, col)
// lives at index col*4+row. This matches the layout camera matrices are
// usually exported in.
type Mat4 [16]float32

var Identity4 = Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

func (m *Mat4) At(row, col int) float32 {
	return m[col*4+row]
}

func (m *Mat4) Set(row, col int, v float32) {
	m[col*4+row] = v
}

// TransformPoint applies the affine part of m to p, ignoring the last row.
func (m *Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12],
		m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13],
		m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14],
	}
}

// TransformPointH applies m to the homogeneous point (p, 1) and returns the
// resulting xyz and w.
func (m *Mat4) TransformPointH(p Vec3) (Vec3, float32) {
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	return m.TransformPoint(p), w
}

// Rotation returns the upper-left 3x3 block of m.
func (m *Mat4) Rotation() Mat3 {
	return Mat3{
		{m[0], m[4], m[8]},
		{m[1], m[5], m[9]},
		{m[2], m[6], m[10]},
	}
}

func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for r := range 4 {
		for c := range 4 {
			var sum float32
			for k := range 4 {
				sum += m[k*4+r] * o[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// LookAt returns a world-to-camera matrix for a camera at eye looking at
// target. Camera space has x pointing right, y pointing down and z pointing
// forward.
func LookAt(eye, target, up Vec3) Mat4 {
	z := target.Sub(eye).Normalize()
	x := z.Cross(up).Normalize()
	y := z.Cross(x)
	var m Mat4
	for i := range 3 {
		m.Set(0, i, x[i])
		m.Set(1, i, y[i])
		m.Set(2, i, z[i])
	}
	m.Set(0, 3, -x.Dot(eye))
	m.Set(1, 3, -y.Dot(eye))
	m.Set(2, 3, -z.Dot(eye))
	m.Set(3, 3, 1)
	return m
}

// Perspective returns a projection matrix mapping camera space to clip space,
// with w equal to the camera-space depth and z mapped to [0, 1] between near
// and far.
func Perspective(tanFovX, tanFovY, near, far float32) Mat4 {
	var m Mat4
	m.Set(0, 0, 1/tanFovX)
	m.Set(1, 1, 1/tanFovY)
	m.Set(2, 2, far/(far-near))
	m.Set(2, 3, -(far*near)/(far-near))
	m.Set(3, 2, 1)
	return m
}

// Mat3 is a 3x3 matrix indexed as [row][col].
type Mat3 [3][3]float32

func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for r := range 3 {
		for c := range 3 {
			out[r][c] = m[r][0]*o[0][c] + m[r][1]*o[1][c] + m[r][2]*o[2][c]
		}
	}
	return out
}

func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for r := range 3 {
		for c := range 3 {
			out[r][c] = m[c][r]
		}
	}
	return out
}

func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Sym3 returns the symmetric matrix described by its upper triangle, in the
// order xx, xy, xz, yy, yz, zz.
func Sym3(c [6]float32) Mat3 {
	return Mat3{
		{c[0], c[1], c[2]},
		{c[1], c[3], c[4]},
		{c[2], c[4], c[5]},
	}
}

// Upper returns the upper triangle of m in the order used by Sym3.
func (m Mat3) Upper() [6]float32 {
	return [6]float32{m[0][0], m[0][1], m[0][2], m[1][1], m[1][2], m[2][2]}
}
