package latest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_EmptyByDefault(t *testing.T) {
	var c Cell[[]byte]
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCell_OverwriteSemantics(t *testing.T) {
	var c Cell[int]
	c.Put(1)
	c.Put(2)
	c.Put(3)

	v, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, uint64(2), c.Overwrites())
}

func TestCell_Clear(t *testing.T) {
	var c Cell[string]
	c.Put("frame")
	c.Clear()
	_, ok := c.Get()
	assert.False(t, ok)
}

func TestCell_ConcurrentPutGet(t *testing.T) {
	var c Cell[int]
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Put(base*1000 + j)
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 1000; j++ {
			c.Get()
		}
	}()

	wg.Wait()

	v, ok := c.Get()
	require.True(t, ok)
	// Whatever won, the cell holds exactly one untorn value.
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 4000)
}
