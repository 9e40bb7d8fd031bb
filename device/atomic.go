// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package device

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AddFloat32 atomically adds delta to *addr. Kernels use it to accumulate
// into buffers that several threads write to.
func AddFloat32(addr *float32, delta float32) {
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		sum := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(p, old, sum) {
			return
		}
	}
}
