package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	localBucket = []byte("vastrakart")
	localKey    = []byte("cart")
)

type localItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// LocalCartStore keeps a guest's cart on the device. It has no server
// identity; the records live under a single "cart" key as a JSON array and
// are merged into the server cart on sign-in.
type LocalCartStore struct {
	db *bolt.DB
}

// OpenLocalCartStore opens (or creates) the on-device store at path.
func OpenLocalCartStore(path string) (*LocalCartStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, wrapError(KindTransient, fmt.Errorf("failed to open local cart store: %w", err))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(localBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, wrapError(KindTransient, fmt.Errorf("failed to create local cart bucket: %w", err))
	}

	return &LocalCartStore{db: db}, nil
}

func (s *LocalCartStore) Close() error {
	return s.db.Close()
}

func (s *LocalCartStore) GetCart(ctx context.Context) (*Cart, error) {
	items, err := s.readItems()
	if err != nil {
		return nil, err
	}

	cart := &Cart{Items: make([]CartItem, 0, len(items))}
	for _, item := range items {
		cart.Items = append(cart.Items, CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
		cart.ItemCount += item.Quantity
	}

	return cart, nil
}

// UpsertItem has the same set-or-remove semantics as the server cart. The
// device is the only writer, so expectedVersion is ignored.
func (s *LocalCartStore) UpsertItem(ctx context.Context, productID uuid.UUID, quantity int, expectedVersion *int64) error {
	if productID == uuid.Nil {
		return newError(KindValidation, "product id is required")
	}
	if quantity < 0 {
		return newError(KindValidation, "quantity must not be negative")
	}

	items, err := s.readItems()
	if err != nil {
		return err
	}

	updated := make([]localItem, 0, len(items)+1)
	replaced := false
	for _, item := range items {
		if item.ProductID == productID {
			replaced = true
			if quantity == 0 {
				continue
			}
			item.Quantity = quantity
		}
		updated = append(updated, item)
	}
	if !replaced && quantity > 0 {
		updated = append(updated, localItem{ProductID: productID, Quantity: quantity})
	}

	return s.writeItems(updated)
}

func (s *LocalCartStore) RemoveItem(ctx context.Context, productID uuid.UUID) error {
	return s.UpsertItem(ctx, productID, 0, nil)
}

func (s *LocalCartStore) Clear(ctx context.Context) error {
	return s.writeItems(nil)
}

func (s *LocalCartStore) readItems() ([]localItem, error) {
	var items []localItem
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(localBucket).Get(localKey)
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &items)
	})
	if err != nil {
		return nil, wrapError(KindTransient, fmt.Errorf("failed to read local cart: %w", err))
	}
	return items, nil
}

func (s *LocalCartStore) writeItems(items []localItem) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if len(items) == 0 {
			return tx.Bucket(localBucket).Delete(localKey)
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return err
		}
		return tx.Bucket(localBucket).Put(localKey, raw)
	})
	if err != nil {
		return wrapError(KindTransient, fmt.Errorf("failed to write local cart: %w", err))
	}
	return nil
}
