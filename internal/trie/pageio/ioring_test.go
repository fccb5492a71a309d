package pageio

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiberReadNodeReturnsResult(t *testing.T) {
	r := NewRing(2)
	defer r.Close()

	v, err := FiberReadNode(r, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestFiberWriteRunsOnWorker(t *testing.T) {
	r := NewRing(2)
	defer r.Close()

	var n int32
	err := FiberWrite(r, func() error {
		atomic.AddInt32(&n, 1)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestManyConcurrentSubmissionsAllComplete(t *testing.T) {
	r := NewRing(4)
	defer r.Close()

	const total = 200
	results := make(chan int, total)
	for i := 0; i < total; i++ {
		i := i
		go func() {
			v, err := FiberReadNode(r, func() (int, error) { return i, nil })
			require.NoError(t, err)
			results <- v
		}()
	}
	seen := map[int]bool{}
	for i := 0; i < total; i++ {
		seen[<-results] = true
	}
	require.Len(t, seen, total)
}
