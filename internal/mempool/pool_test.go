package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"one", 1, 1024},
		{"exact", 1024, 1024},
		{"just over", 1025, 2048},
		{"large", 1024*1024 + 1, 1024*1024 + 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetLengthAndCapacity(t *testing.T) {
	var p Pool[float32]
	for _, n := range []int{1, 100, 1024, 5000} {
		buf := p.Get(n)
		assert.Len(t, buf, n)
		assert.Equal(t, sizeClass(n), cap(buf))
	}
	assert.Nil(t, p.Get(0))
}

func TestGetReturnsZeroedBuffers(t *testing.T) {
	var p Pool[bool]
	buf := p.Get(2000)
	for i := range buf {
		buf[i] = true
	}
	p.Put(buf)

	// sync.Pool may or may not hand back the same slice; either way it is zeroed.
	again := p.Get(1500)
	require.Len(t, again, 1500)
	for i, v := range again {
		if v {
			t.Fatalf("index %d not cleared", i)
		}
	}
}

func TestPutIgnoresForeignSlices(t *testing.T) {
	var p Pool[bool]
	assert.NotPanics(t, func() {
		p.Put(nil)
		p.Put(make([]bool, 0))
		p.Put(make([]bool, 7))
	})
	_, ok := p.classes.Load(7)
	assert.False(t, ok)
}

func TestConcurrentGetPut(t *testing.T) {
	var p Pool[bool]
	var wg sync.WaitGroup
	for g := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				n := 500 + (g*i)%3000
				buf := p.Get(n)
				assert.Len(t, buf, n)
				buf[n-1] = true
				p.Put(buf)
			}
		}()
	}
	wg.Wait()
}
