// Package mempool keeps sized pools of scratch buffers for the per-pixel
// vision kernels, which allocate several image-sized slices per call.
package mempool

import (
	"sync"
)

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	boolPools    sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 1024, with 1024 as the floor.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func pool[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	p := pool[T](pools, cls)
	if p == nil {
		return make([]T, n)
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	p := pool[T](pools, sizeClass(cap(buf)))
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetFloat64 returns a zeroed []float64 of length n. Return it with
// PutFloat64 when done.
func GetFloat64(n int) []float64 { return get[float64](&float64Pools, n) }

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) { put(&float64Pools, buf) }

// GetBool returns a zeroed []bool of length n. Return it with PutBool.
func GetBool(n int) []bool { return get[bool](&boolPools, n) }

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) { put(&boolPools, buf) }

// GetFloat64Multiple retrieves one zeroed buffer per requested size.
func GetFloat64Multiple(sizes []int) [][]float64 {
	if len(sizes) == 0 {
		return nil
	}
	buffers := make([][]float64, len(sizes))
	for i, size := range sizes {
		buffers[i] = GetFloat64(size)
	}
	return buffers
}

// PutFloat64Multiple returns several buffers to the pool. Nil entries are
// skipped.
func PutFloat64Multiple(bufs [][]float64) {
	for _, buf := range bufs {
		PutFloat64(buf)
	}
}
