// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package binning

import "honnef.co/go/splat/jmath"

// NearPlane is the camera-space depth below which primitives are culled.
const NearPlane = 0.2

// InFrustum reports whether p lies in front of the near plane of the camera
// described by the world-to-camera matrix view and the full world-to-clip
// matrix proj. It is a coarse test that ignores the extent of primitives.
func InFrustum(p jmath.Vec3, view, proj *jmath.Mat4) bool {
	pView := view.TransformPoint(p)
	if pView[2] <= NearPlane {
		return false
	}
	_, w := proj.TransformPointH(p)
	return w > 0
}

// MarkVisible is the per-thread body of the visibility filter.
func MarkVisible(idx int, means [][3]float32, view, proj *jmath.Mat4, present []bool) {
	if idx >= len(means) {
		return
	}
	present[idx] = InFrustum(means[idx], view, proj)
}
