// Package cartstore is the client-side cart. Every mutation swaps in a new
// immutable snapshot under a lock and then persists it, so readers never see
// a half-applied change.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// StorageKey is the namespaced key the snapshot is persisted under.
const StorageKey = "app-storage"

// Item is one cart line, unique by ItemID.
type Item struct {
	ItemID   string  `json:"itemId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Persister stores the serialized snapshot. Load returns ErrNoSnapshot when
// nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

var ErrNoSnapshot = errors.New("no cart snapshot")

// persistedState mirrors the envelope the web storefront writes to local storage.
type persistedState struct {
	State struct {
		Items []Item `json:"items"`
	} `json:"state"`
	Version int `json:"version"`
}

type Store struct {
	mu        sync.Mutex
	items     atomic.Pointer[[]Item]
	persister Persister
	logger    *zap.Logger
}

// New returns an empty store. A nil persister keeps the cart in memory only.
func New(persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{persister: persister, logger: logger}
	empty := []Item{}
	s.items.Store(&empty)
	return s
}

// Restore replaces the in-memory cart with the persisted snapshot, if any.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	data, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart snapshot: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode cart snapshot: %w", err)
	}

	items := make([]Item, 0, len(state.State.Items))
	for _, it := range state.State.Items {
		if it.ItemID == "" {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		items = append(items, it)
	}

	s.mu.Lock()
	s.items.Store(&items)
	s.mu.Unlock()
	return nil
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	cur := *s.items.Load()
	out := make([]Item, len(cur))
	copy(out, cur)
	return out
}

// Total is recomputed from the lines on every call.
func (s *Store) Total() float64 {
	var total float64
	for _, it := range *s.items.Load() {
		total += it.Price * float64(it.Quantity)
	}
	return math.Round(total*100) / 100
}

func (s *Store) Count() int {
	n := 0
	for _, it := range *s.items.Load() {
		n += it.Quantity
	}
	return n
}

// AddItem inserts item with quantity 1, or bumps an existing line by one.
// item.Quantity is ignored.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	if item.ItemID == "" {
		return errors.New("item id is required")
	}
	return s.update(ctx, func(cur []Item) []Item {
		for i := range cur {
			if cur[i].ItemID == item.ItemID {
				cur[i].Quantity++
				return cur
			}
		}
		item.Quantity = 1
		return append(cur, item)
	})
}

func (s *Store) IncreaseQuantity(ctx context.Context, itemID string) error {
	return s.adjust(ctx, itemID, 1)
}

// DecreaseQuantity never takes a line below one; use RemoveItem to drop it.
func (s *Store) DecreaseQuantity(ctx context.Context, itemID string) error {
	return s.adjust(ctx, itemID, -1)
}

func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.update(ctx, func(cur []Item) []Item {
		out := cur[:0]
		for _, it := range cur {
			if it.ItemID != itemID {
				out = append(out, it)
			}
		}
		return out
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.update(ctx, func([]Item) []Item { return []Item{} })
}

func (s *Store) adjust(ctx context.Context, itemID string, delta int) error {
	return s.update(ctx, func(cur []Item) []Item {
		for i := range cur {
			if cur[i].ItemID == itemID {
				cur[i].Quantity = max(1, cur[i].Quantity+delta)
			}
		}
		return cur
	})
}

// update hands fn a private copy of the lines and publishes the result as
// the new snapshot. Persistence failures are returned but the in-memory
// change stands.
func (s *Store) update(ctx context.Context, fn func([]Item) []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(s.Items())
	s.items.Store(&next)

	if s.persister == nil {
		return nil
	}

	var state persistedState
	state.State.Items = next
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart snapshot: %w", err)
	}
	if err := s.persister.Save(ctx, data); err != nil {
		s.logger.Warn("Failed to persist cart", zap.Error(err))
		return fmt.Errorf("persist cart snapshot: %w", err)
	}
	return nil
}
