package utils

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicAddFloat64 adds delta to *addr with a compare-and-swap loop on the
// IEEE-754 bits, so concurrent writers to the same element never lose an
// update. addr must be 8 byte aligned, which every element of a []float64 is.
func AtomicAddFloat64(addr *float64, delta float64) {
	p := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(p)
		sum := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(p, old, sum) {
			return
		}
	}
}

// AtomicLoadFloat64 reads a value written by AtomicAddFloat64.
func AtomicLoadFloat64(addr *float64) float64 {
	return math.Float64frombits(atomic.LoadUint64((*uint64)(unsafe.Pointer(addr))))
}
