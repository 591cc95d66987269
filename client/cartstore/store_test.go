package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	taco     = Item{ItemID: "a", Name: "Taco al pastor", Price: 3.50}
	horchata = Item{ItemID: "b", Name: "Horchata", Price: 3.00}
)

type memPersister struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (m *memPersister) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return m.data, nil
}

func (m *memPersister) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func TestAddItem_RepeatAddsIncrement(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)

	for n := 1; n <= 5; n++ {
		item := taco
		item.Quantity = 42
		require.NoError(t, s.AddItem(ctx, item))

		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, n, items[0].Quantity)
		assert.InDelta(t, 3.50*float64(n), s.Total(), 0.0001)
	}

	assert.Error(t, s.AddItem(ctx, Item{Name: "no id"}))
}

func TestQuantityAdjustments(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	require.NoError(t, s.AddItem(ctx, taco))
	require.NoError(t, s.AddItem(ctx, horchata))

	require.NoError(t, s.IncreaseQuantity(ctx, "a"))
	assert.Equal(t, 2, s.Items()[0].Quantity)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.DecreaseQuantity(ctx, "a"))
	}
	assert.Equal(t, 1, s.Items()[0].Quantity, "decrease floors at one")
	assert.Len(t, s.Items(), 2)

	require.NoError(t, s.IncreaseQuantity(ctx, "missing"))
	assert.Equal(t, 2, s.Count())

	require.NoError(t, s.RemoveItem(ctx, "a"))
	require.Len(t, s.Items(), 1)
	assert.Equal(t, "b", s.Items()[0].ItemID)

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Items())
	assert.Zero(t, s.Total())
}

func TestItems_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	require.NoError(t, s.AddItem(ctx, taco))

	items := s.Items()
	items[0].Quantity = 99
	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}

	s := New(p, nil)
	require.NoError(t, s.AddItem(ctx, taco))
	require.NoError(t, s.AddItem(ctx, taco))
	require.NoError(t, s.AddItem(ctx, horchata))
	assert.Equal(t, 3, p.saves)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(p.data, &raw))
	assert.Contains(t, raw, "state")
	assert.EqualValues(t, 0, raw["version"])

	restored := New(p, nil)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, s.Items(), restored.Items())
	assert.InDelta(t, 10.0, restored.Total(), 0.0001)
}

func TestRestore_NoSnapshot(t *testing.T) {
	s := New(&memPersister{}, nil)
	require.NoError(t, s.Restore(context.Background()))
	assert.Empty(t, s.Items())
}

func TestRestore_RejectsCorruptSnapshot(t *testing.T) {
	s := New(&memPersister{data: []byte("{not json")}, nil)
	assert.Error(t, s.Restore(context.Background()))
}

func TestPersistFailureKeepsInMemoryChange(t *testing.T) {
	p := &memPersister{saveErr: errors.New("disk full")}
	s := New(p, nil)

	err := s.AddItem(context.Background(), taco)
	require.Error(t, err)
	assert.Len(t, s.Items(), 1)
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := New(&memPersister{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddItem(ctx, taco)
			_ = s.Total()
		}()
	}
	wg.Wait()

	require.Len(t, s.Items(), 1)
	assert.Equal(t, 50, s.Items()[0].Quantity)
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart", StorageKey+".json")
	p := NewFilePersister(path)

	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	s := New(p, nil)
	require.NoError(t, s.AddItem(ctx, horchata))

	restored := New(p, nil)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, []Item{{ItemID: "b", Name: "Horchata", Price: 3.00, Quantity: 1}}, restored.Items())
}

func TestRedisPersister(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	p := NewRedisPersister(client, "session-1")

	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	s := New(p, nil)
	require.NoError(t, s.AddItem(ctx, taco))
	assert.True(t, mr.Exists("session-1:app-storage"))

	restored := New(p, nil)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, s.Items(), restored.Items())
}
