// Package mempool recycles the float32 buffers used for model input tensors.
package mempool

import "sync"

// Float32Pool hands out []float32 buffers bucketed by exact length. Model
// inputs have a fixed size per configuration, so exact buckets reuse well.
type Float32Pool struct {
	pools sync.Map // int -> *sync.Pool of *[]float32
}

var defaultPool Float32Pool

// Get returns a buffer of length n. Its contents are unspecified.
func (p *Float32Pool) Get(n int) []float32 {
	if n <= 0 {
		return nil
	}
	if bp, ok := p.bucket(n).Get().(*[]float32); ok && len(*bp) == n {
		return *bp
	}
	return make([]float32, n)
}

// Put returns buf to the pool. Nil and empty buffers are ignored.
func (p *Float32Pool) Put(buf []float32) {
	if len(buf) == 0 {
		return
	}
	buf = buf[:cap(buf)]
	p.bucket(len(buf)).Put(&buf)
}

func (p *Float32Pool) bucket(n int) *sync.Pool {
	if v, ok := p.pools.Load(n); ok {
		return v.(*sync.Pool)
	}
	v, _ := p.pools.LoadOrStore(n, &sync.Pool{})
	return v.(*sync.Pool)
}

// GetFloat32 takes a buffer of length n from the shared pool.
func GetFloat32(n int) []float32 { return defaultPool.Get(n) }

// PutFloat32 returns a buffer obtained from GetFloat32.
func PutFloat32(buf []float32) { defaultPool.Put(buf) }
