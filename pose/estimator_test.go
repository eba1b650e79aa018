package pose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_StartsAtOrigin(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, Pose{}, e.Position())
}

func TestEstimator_SnapshotCopy(t *testing.T) {
	e := NewEstimator()
	e.SetPosition(Pose{X: 10, Y: 20, Orientation: 45})

	snap := e.Position()
	snap.X = 999 // mutating the snapshot must not affect the estimator

	assert.Equal(t, Pose{X: 10, Y: 20, Orientation: 45}, e.Position())
}

func TestEstimator_ConcurrentReadsNeverTear(t *testing.T) {
	e := NewEstimator()
	var wg sync.WaitGroup

	// Single writer, many readers. Every observed pose must be one of the
	// written values in full, never a mix of fields.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			v := float64(i)
			e.SetPosition(Pose{X: v, Y: v, Orientation: v})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5000; i++ {
				p := e.Position()
				assert.Equal(t, p.X, p.Y)
				assert.Equal(t, p.X, p.Orientation)
			}
		}()
	}

	wg.Wait()
}
