package client

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
)

// conflictRetries bounds how often an additive write is replayed after the
// server rejects it for a stale cart version.
const conflictRetries = 3

// SyncEngine sits above the two cart stores. It provides additive add-to-cart
// semantics, routes guests to the device-local store, merges the local cart
// into the server cart on sign-in, and keeps the cached cart view coherent by
// dropping it after every mutation.
type SyncEngine struct {
	session *Session
	remote  CartStore
	local   CartStore

	mu     sync.Mutex
	cached *Cart
}

func NewSyncEngine(session *Session, remote, local CartStore) *SyncEngine {
	return &SyncEngine{session: session, remote: remote, local: local}
}

// store picks the backing cart for the current identity. Guests mutate the
// device-local cart; an add-to-cart while signed out is a valid local action,
// not a crash.
func (e *SyncEngine) store() CartStore {
	if _, ok := e.session.UserID(); ok {
		return e.remote
	}
	return e.local
}

// GetCart fetches a fresh cart and installs it as the cached view.
func (e *SyncEngine) GetCart(ctx context.Context) (*Cart, error) {
	cart, err := e.store().GetCart(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cached = cart
	e.mu.Unlock()

	return cart, nil
}

// CachedCart returns the last cart fetched since the most recent mutation, or
// nil when the view is stale and must be refetched.
func (e *SyncEngine) CachedCart() *Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cached
}

func (e *SyncEngine) invalidate() {
	e.mu.Lock()
	e.cached = nil
	e.mu.Unlock()
}

// AddToCart adds delta to the stored quantity. The read-then-write pair is
// guarded by the cart version: a concurrent writer from another tab bumps the
// version, the conditional upsert comes back 409, and the composition is
// replayed on a fresh read instead of silently losing the increment.
func (e *SyncEngine) AddToCart(ctx context.Context, productID uuid.UUID, delta int) error {
	defer e.invalidate()

	store := e.store()

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		cart, err := store.GetCart(ctx)
		if err != nil {
			return err
		}

		quantity := cart.Quantity(productID) + delta
		if quantity < 0 {
			quantity = 0
		}

		err = store.UpsertItem(ctx, productID, quantity, &cart.Version)
		if err == nil {
			return nil
		}
		if !IsKind(err, KindConflict) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// UpdateQuantity sets an absolute quantity; zero or below removes the item.
func (e *SyncEngine) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	defer e.invalidate()

	if quantity <= 0 {
		return e.store().RemoveItem(ctx, productID)
	}
	return e.store().UpsertItem(ctx, productID, quantity, nil)
}

func (e *SyncEngine) RemoveItem(ctx context.Context, productID uuid.UUID) error {
	defer e.invalidate()
	return e.store().RemoveItem(ctx, productID)
}

func (e *SyncEngine) Clear(ctx context.Context) error {
	defer e.invalidate()
	return e.store().Clear(ctx)
}

// MergeOnLogin folds the guest cart into the server cart after sign-in, item
// by item with additive semantics. Each local item is removed the moment its
// server upsert lands, so a merge interrupted partway can be retried and only
// replays the items that never reached the server; an item already merged is
// never added twice.
func (e *SyncEngine) MergeOnLogin(ctx context.Context) error {
	if _, ok := e.session.UserID(); !ok {
		return newError(KindAuthRequired, "sign in before merging the guest cart")
	}

	defer e.invalidate()

	localCart, err := e.local.GetCart(ctx)
	if err != nil {
		return err
	}

	for _, item := range localCart.Items {
		var lastErr error
		merged := false
		for attempt := 0; attempt <= conflictRetries; attempt++ {
			serverCart, err := e.remote.GetCart(ctx)
			if err != nil {
				return err
			}

			quantity := serverCart.Quantity(item.ProductID) + item.Quantity
			err = e.remote.UpsertItem(ctx, item.ProductID, quantity, &serverCart.Version)
			if err == nil {
				merged = true
				break
			}
			if !IsKind(err, KindConflict) {
				return err
			}
			lastErr = err
		}
		if !merged {
			return lastErr
		}

		if err := e.local.RemoveItem(ctx, item.ProductID); err != nil {
			return err
		}
	}

	return nil
}
