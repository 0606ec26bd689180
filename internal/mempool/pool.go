// Package mempool recycles the page-sized scratch slices used while labeling
// detector output. Buffers are grouped into size classes so that pages of
// similar dimensions share storage.
package mempool

import "sync"

const classStep = 1024

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= 0 {
		return 0
	}
	return ((n + classStep - 1) / classStep) * classStep
}

// Pool hands out zeroed slices of T. The zero value is ready to use.
type Pool[T any] struct {
	classes sync.Map // int -> *sync.Pool
}

func (p *Pool[T]) class(size int) *sync.Pool {
	if v, ok := p.classes.Load(size); ok {
		return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	v, _ := p.classes.LoadOrStore(size, &sync.Pool{
		New: func() any {
			buf := make([]T, size)
			return &buf
		},
	})
	return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	bp, ok := p.class(sizeClass(n)).Get().(*[]T)
	if !ok || cap(*bp) < n {
		return make([]T, n)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// Put returns buf to its size class. Slices whose capacity is not a class
// size were not handed out by Get and are dropped.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	buf = buf[:c]
	p.class(c).Put(&buf)
}

// Bools holds the masks and visited sets of connected component labeling.
var Bools Pool[bool]
