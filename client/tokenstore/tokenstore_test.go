package tokenstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return now }

	assert.Empty(t, s.Get())

	s.Set("access-1", now.Add(15*time.Minute))
	assert.Equal(t, "access-1", s.Get())

	now = now.Add(15 * time.Minute)
	assert.Empty(t, s.Get(), "expired tokens are not returned")

	s.Set("access-2", time.Time{})
	assert.Equal(t, "access-2", s.Get())

	s.Clear()
	assert.Empty(t, s.Get())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set("token", time.Now().Add(time.Minute))
		}()
		go func() {
			defer wg.Done()
			_ = s.Get()
		}()
	}
	wg.Wait()
	assert.Equal(t, "token", s.Get())
}
