package sync_

import (
	"errors"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestMutexed(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed(123)
	assert.Equal(123, m.Get())
	m.Set(456)
	assert.Equal(456, m.Get())
	assert.Equal(456, m.Swap(789))
	assert.Equal(789, m.Get())
}

func TestMutexedConcurrentMap(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed(make(map[string]int))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Locked(func(counts map[string]int) error {
				counts["http"]++
				return nil
			})
		}()
	}
	wg.Wait()
	n, err := With(m, func(counts map[string]int) (int, error) {
		return counts["http"], nil
	})
	assert.NoError(err)
	assert.Equal(50, n)
}

func TestWithError(t *testing.T) {
	assert := assert_.New(t)
	m := NewMutexed("value")
	sentinel := errors.New("sentinel")
	_, err := With(m, func(string) (int, error) {
		return 0, sentinel
	})
	assert.ErrorIs(err, sentinel)
	assert.ErrorIs(m.Locked(func(string) error { return sentinel }), sentinel)
}
