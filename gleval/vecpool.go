package gleval

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soypat/geometry/ms3"
)

// VecPool provides reusable evaluation buffers. It is safe for concurrent use.
// The zero value is ready to use.
type VecPool struct {
	Float bufPool[float32]
	V3    bufPool[ms3.Vec]
}

// GetVecPool extracts a [VecPool] from userData. userData may be a *VecPool
// or implement a VecPool() *VecPool method.
func GetVecPool(userData any) (*VecPool, error) {
	switch v := userData.(type) {
	case *VecPool:
		if v == nil {
			return nil, errors.New("nil *VecPool")
		}
		return v, nil
	case interface{ VecPool() *VecPool }:
		vp := v.VecPool()
		if vp == nil {
			return nil, errors.New("VecPool method returned nil")
		}
		return vp, nil
	}
	return nil, fmt.Errorf("want *VecPool or VecPool method in userData, got %T", userData)
}

// Assert returns an error if any buffer acquired from the pool has not been released.
func (vp *VecPool) Assert() error {
	return errors.Join(vp.Float.assertReleased("float32"), vp.V3.assertReleased("ms3.Vec"))
}

type bufPool[T any] struct {
	mu       sync.Mutex
	free     [][]T
	acquired int
}

// Acquire returns a buffer of length n. Its contents are unspecified.
func (bp *bufPool[T]) Acquire(n int) []T {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.acquired++
	for i, buf := range bp.free {
		if cap(buf) >= n {
			last := len(bp.free) - 1
			bp.free[i] = bp.free[last]
			bp.free = bp.free[:last]
			return buf[:n]
		}
	}
	return make([]T, n)
}

// Release returns a buffer obtained from Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) {
	if cap(buf) == 0 {
		return
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.acquired--
	bp.free = append(bp.free, buf[:0])
}

func (bp *bufPool[T]) assertReleased(name string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.acquired != 0 {
		return fmt.Errorf("%d %s buffers not released", bp.acquired, name)
	}
	return nil
}
