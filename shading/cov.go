// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shading

import "honnef.co/go/splat/jmath"

// quatToMat returns the rotation matrix of the quaternion q = (r, x, y, z).
// q is not normalized.
func quatToMat(q [4]float32) jmath.Mat3 {
	r, x, y, z := q[0], q[1], q[2], q[3]
	return jmath.Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - r*z), 2 * (x*z + r*y)},
		{2 * (x*y + r*z), 1 - 2*(x*x+z*z), 2 * (y*z - r*x)},
		{2 * (x*z - r*y), 2 * (y*z + r*x), 1 - 2*(x*x+y*y)},
	}
}

// scaledRotation returns R·diag(mod·scale).
func scaledRotation(scale [3]float32, mod float32, q [4]float32) (rot, m jmath.Mat3) {
	rot = quatToMat(q)
	for i := range 3 {
		for j := range 3 {
			m[i][j] = rot[i][j] * mod * scale[j]
		}
	}
	return rot, m
}

// computeCov3D returns the world-space covariance R·S·Sᵀ·Rᵀ.
func computeCov3D(scale [3]float32, mod float32, q [4]float32) [6]float32 {
	_, m := scaledRotation(scale, mod, q)
	return m.Mul(m.Transpose()).Upper()
}

// computeCov3DBackward returns the gradients with respect to the scale and
// rotation, given the gradient with respect to the six covariance
// parameters, whose off-diagonal entries each stand for two matrix entries.
func computeCov3DBackward(scale [3]float32, mod float32, q [4]float32, dLdCov [6]float32) (dLdScale [3]float32, dLdQ [4]float32) {
	rot, m := scaledRotation(scale, mod, q)
	g := symGrad(dLdCov)

	// Σ = M·Mᵀ, so dL/dM = 2·G·M for symmetric G.
	dLdM := g.Mul(m)
	var dLdR jmath.Mat3
	for i := range 3 {
		for j := range 3 {
			dLdM[i][j] *= 2
			dLdScale[j] += mod * dLdM[i][j] * rot[i][j]
			dLdR[i][j] = dLdM[i][j] * mod * scale[j]
		}
	}

	r, x, y, z := q[0], q[1], q[2], q[3]
	d := dLdR
	dLdQ[0] = 2 * (-z*d[0][1] + y*d[0][2] + z*d[1][0] - x*d[1][2] - y*d[2][0] + x*d[2][1])
	dLdQ[1] = 2 * (y*d[0][1] + z*d[0][2] + y*d[1][0] - 2*x*d[1][1] - r*d[1][2] + z*d[2][0] + r*d[2][1] - 2*x*d[2][2])
	dLdQ[2] = 2 * (-2*y*d[0][0] + x*d[0][1] + r*d[0][2] + x*d[1][0] + z*d[1][2] - r*d[2][0] + z*d[2][1] - 2*y*d[2][2])
	dLdQ[3] = 2 * (-2*z*d[0][0] - r*d[0][1] + x*d[0][2] + r*d[1][0] - 2*z*d[1][1] + y*d[1][2] + x*d[2][0] + y*d[2][1])
	return dLdScale, dLdQ
}

// symGrad turns a gradient with respect to the six parameters of a symmetric
// matrix into the gradient with respect to its nine entries.
func symGrad(p [6]float32) jmath.Mat3 {
	return jmath.Sym3([6]float32{p[0], p[1] / 2, p[2] / 2, p[3], p[4] / 2, p[5]})
}

// symParams is the inverse of symGrad.
func symParams(g jmath.Mat3) [6]float32 {
	return [6]float32{g[0][0], g[0][1] + g[1][0], g[0][2] + g[2][0], g[1][1], g[1][2] + g[2][1], g[2][2]}
}

// projection is the local affine approximation of the perspective projection
// around a Gaussian's center.
type projection struct {
	// t is the camera-space center, with x and y clamped to the extended
	// field of view.
	t        jmath.Vec3
	clampedX bool
	clampedY bool
	w        jmath.Mat3
	j        [2][3]float32
	// jw is J·W.
	jw [2][3]float32
}

func newProjection(mean jmath.Vec3, view *jmath.Mat4, fx, fy, tanFovX, tanFovY float32) projection {
	t := view.TransformPoint(mean)
	limX := 1.3 * tanFovX
	limY := 1.3 * tanFovY
	txtz := t[0] / t[2]
	tytz := t[1] / t[2]
	pr := projection{
		clampedX: txtz < -limX || txtz > limX,
		clampedY: tytz < -limY || tytz > limY,
		w:        view.Rotation(),
	}
	t[0] = jmath.Clamp(txtz, -limX, limX) * t[2]
	t[1] = jmath.Clamp(tytz, -limY, limY) * t[2]
	pr.t = t

	tz2 := t[2] * t[2]
	pr.j = [2][3]float32{
		{fx / t[2], 0, -fx * t[0] / tz2},
		{0, fy / t[2], -fy * t[1] / tz2},
	}
	for r := range 2 {
		for c := range 3 {
			pr.jw[r][c] = pr.j[r][0]*pr.w[0][c] + pr.j[r][1]*pr.w[1][c] + pr.j[r][2]*pr.w[2][c]
		}
	}
	return pr
}

// cov2D returns the screen-space covariance (xx, xy, yy) of a Gaussian with
// world-space covariance cov, with lowPass added to the diagonal.
func (pr *projection) cov2D(cov [6]float32, lowPass float32) [3]float32 {
	sigma := jmath.Sym3(cov)
	var ts [2][3]float32
	for r := range 2 {
		for c := range 3 {
			ts[r][c] = pr.jw[r][0]*sigma[0][c] + pr.jw[r][1]*sigma[1][c] + pr.jw[r][2]*sigma[2][c]
		}
	}
	dot := func(a, b [3]float32) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
	return [3]float32{
		dot(ts[0], pr.jw[0]) + lowPass,
		dot(ts[0], pr.jw[1]),
		dot(ts[1], pr.jw[1]) + lowPass,
	}
}

// cov2DBackward returns the gradients with respect to the world-space
// covariance parameters and the world-space mean, given the gradient with
// respect to the screen-space covariance (xx, xy, yy), whose xy entry stands
// for both off-diagonal entries.
func (pr *projection) cov2DBackward(cov [6]float32, dLdCov2D [3]float32, fx, fy float32) (dLdCov [6]float32, dLdMean jmath.Vec3) {
	sigma := jmath.Sym3(cov)
	g := [2][2]float32{
		{dLdCov2D[0], dLdCov2D[1] / 2},
		{dLdCov2D[1] / 2, dLdCov2D[2]},
	}

	// dL/dΣ = Tᵀ·G·T with T = J·W.
	var gt [2][3]float32
	for r := range 2 {
		for c := range 3 {
			gt[r][c] = g[r][0]*pr.jw[0][c] + g[r][1]*pr.jw[1][c]
		}
	}
	var dLdSigma jmath.Mat3
	for r := range 3 {
		for c := range 3 {
			dLdSigma[r][c] = pr.jw[0][r]*gt[0][c] + pr.jw[1][r]*gt[1][c]
		}
	}
	dLdCov = symParams(dLdSigma)

	// dL/dT = 2·G·T·Σ, dL/dJ = dL/dT·Wᵀ.
	var dLdT [2][3]float32
	for r := range 2 {
		for c := range 3 {
			dLdT[r][c] = 2 * (gt[r][0]*sigma[0][c] + gt[r][1]*sigma[1][c] + gt[r][2]*sigma[2][c])
		}
	}
	var dLdJ [2][3]float32
	for r := range 2 {
		for c := range 3 {
			dLdJ[r][c] = dLdT[r][0]*pr.w[c][0] + dLdT[r][1]*pr.w[c][1] + dLdT[r][2]*pr.w[c][2]
		}
	}

	t := pr.t
	tz1 := 1 / t[2]
	tz2 := tz1 * tz1
	tz3 := tz2 * tz1
	var dLdt jmath.Vec3
	if !pr.clampedX {
		dLdt[0] = -fx * tz2 * dLdJ[0][2]
	}
	if !pr.clampedY {
		dLdt[1] = -fy * tz2 * dLdJ[1][2]
	}
	dLdt[2] = -fx*tz2*dLdJ[0][0] - fy*tz2*dLdJ[1][1] +
		2*fx*t[0]*tz3*dLdJ[0][2] + 2*fy*t[1]*tz3*dLdJ[1][2]

	// t = W·mean + translation.
	dLdMean = pr.w.Transpose().MulVec(dLdt)
	return dLdCov, dLdMean
}

// invert2 returns the inverse (xx, xy, yy) of the symmetric 2x2 matrix cov
// and false if it is singular.
func invert2(cov [3]float32) ([3]float32, bool) {
	det := cov[0]*cov[2] - cov[1]*cov[1]
	if det == 0 {
		return [3]float32{}, false
	}
	inv := 1 / det
	return [3]float32{cov[2] * inv, -cov[1] * inv, cov[0] * inv}, true
}

// invert2Backward returns the gradient with respect to cov given the gradient
// with respect to its inverse conic. Both xy entries stand for two matrix
// entries.
func invert2Backward(conic [3]float32, dLdConic [3]float32) [3]float32 {
	q := [2][2]float32{{conic[0], conic[1]}, {conic[1], conic[2]}}
	m := [2][2]float32{{dLdConic[0], dLdConic[1] / 2}, {dLdConic[1] / 2, dLdConic[2]}}
	// dL/dV = -Q·M·Q.
	var qm, out [2][2]float32
	for r := range 2 {
		for c := range 2 {
			qm[r][c] = q[r][0]*m[0][c] + q[r][1]*m[1][c]
		}
	}
	for r := range 2 {
		for c := range 2 {
			out[r][c] = -(qm[r][0]*q[0][c] + qm[r][1]*q[1][c])
		}
	}
	return [3]float32{out[0][0], out[0][1] + out[1][0], out[1][1]}
}

// radius returns the screen-space extent of a Gaussian with covariance cov,
// three standard deviations along its major axis.
func radius(cov [3]float32) int32 {
	det := cov[0]*cov[2] - cov[1]*cov[1]
	mid := 0.5 * (cov[0] + cov[2])
	root := jmath.Sqrt32(max(0.1, mid*mid-det))
	lambda1 := mid + root
	lambda2 := mid - root
	return int32(jmath.Ceil32(3 * jmath.Sqrt32(max(lambda1, lambda2))))
}

// ndc2Pix maps a normalized device coordinate to a pixel coordinate, with
// pixel centers at integers.
func ndc2Pix(v float32, size int) float32 {
	return ((v+1)*float32(size) - 1) * 0.5
}
