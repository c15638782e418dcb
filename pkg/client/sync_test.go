package client_test

import (
	"context"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastrakart/vastrakart/pkg/client"
)

// fakeCartStore mimics the server cart: set-or-remove upserts, a version that
// bumps on every write, and conditional writes rejected on a stale version.
type fakeCartStore struct {
	mu          sync.Mutex
	version     int64
	items       map[uuid.UUID]int
	conflicts   int // number of upserts to reject before accepting
	upserts     int
	failUpserts map[uuid.UUID]error // one-shot upsert failures per product
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{items: make(map[uuid.UUID]int)}
}

func (f *fakeCartStore) GetCart(ctx context.Context) (*client.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cart := &client.Cart{Version: f.version, Items: make([]client.CartItem, 0, len(f.items))}
	for id, qty := range f.items {
		cart.Items = append(cart.Items, client.CartItem{ProductID: id, Quantity: qty})
		cart.ItemCount += qty
	}
	return cart, nil
}

func (f *fakeCartStore) UpsertItem(ctx context.Context, productID uuid.UUID, quantity int, expectedVersion *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts++
	if err, ok := f.failUpserts[productID]; ok {
		delete(f.failUpserts, productID)
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		// Simulate a concurrent writer landing first.
		f.version++
		return &client.Error{Kind: client.KindConflict, Message: "cart version conflict"}
	}
	if expectedVersion != nil && *expectedVersion != f.version {
		return &client.Error{Kind: client.KindConflict, Message: "cart version conflict"}
	}

	if quantity == 0 {
		delete(f.items, productID)
	} else {
		f.items[productID] = quantity
	}
	f.version++
	return nil
}

func (f *fakeCartStore) RemoveItem(ctx context.Context, productID uuid.UUID) error {
	return f.UpsertItem(ctx, productID, 0, nil)
}

func (f *fakeCartStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = make(map[uuid.UUID]int)
	f.version++
	return nil
}

func (f *fakeCartStore) quantity(productID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[productID]
}

func signedInSession(t *testing.T) *client.Session {
	t.Helper()
	session := client.NewSession()
	session.SignIn(uuid.Must(uuid.NewV4()), "token")
	return session
}

func TestSyncEngine_AddToCartIsAdditive(t *testing.T) {
	ctx := context.Background()
	remote := newFakeCartStore()
	engine := client.NewSyncEngine(signedInSession(t), remote, newFakeCartStore())
	productID := uuid.Must(uuid.NewV4())

	require.NoError(t, engine.AddToCart(ctx, productID, 3))
	require.NoError(t, engine.AddToCart(ctx, productID, 2))

	assert.Equal(t, 5, remote.quantity(productID))
}

func TestSyncEngine_AddToCartRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	remote := newFakeCartStore()
	remote.conflicts = 2
	engine := client.NewSyncEngine(signedInSession(t), remote, newFakeCartStore())
	productID := uuid.Must(uuid.NewV4())

	require.NoError(t, engine.AddToCart(ctx, productID, 3))

	assert.Equal(t, 3, remote.quantity(productID))
	assert.Equal(t, 3, remote.upserts, "two rejected attempts plus the replay")
}

func TestSyncEngine_AddToCartNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	remote := newFakeCartStore()
	engine := client.NewSyncEngine(signedInSession(t), remote, newFakeCartStore())
	productID := uuid.Must(uuid.NewV4())

	require.NoError(t, engine.AddToCart(ctx, productID, 2))
	require.NoError(t, engine.AddToCart(ctx, productID, -5))

	assert.Equal(t, 0, remote.quantity(productID))
}

func TestSyncEngine_UpdateQuantityRoutesNonPositiveToRemove(t *testing.T) {
	ctx := context.Background()
	remote := newFakeCartStore()
	engine := client.NewSyncEngine(signedInSession(t), remote, newFakeCartStore())
	productID := uuid.Must(uuid.NewV4())

	require.NoError(t, engine.UpdateQuantity(ctx, productID, 4))
	assert.Equal(t, 4, remote.quantity(productID))

	require.NoError(t, engine.UpdateQuantity(ctx, productID, 0))
	assert.Equal(t, 0, remote.quantity(productID))
}

func TestSyncEngine_GuestMutationsGoToLocalStore(t *testing.T) {
	ctx := context.Background()
	remote := newFakeCartStore()
	local := newFakeCartStore()
	engine := client.NewSyncEngine(client.NewSession(), remote, local)
	productID := uuid.Must(uuid.NewV4())

	require.NoError(t, engine.AddToCart(ctx, productID, 2))

	assert.Equal(t, 2, local.quantity(productID))
	assert.Equal(t, 0, remote.quantity(productID))
}

func TestSyncEngine_CacheInvalidatedAfterMutation(t *testing.T) {
	ctx := context.Background()
	engine := client.NewSyncEngine(signedInSession(t), newFakeCartStore(), newFakeCartStore())
	productID := uuid.Must(uuid.NewV4())

	_, err := engine.GetCart(ctx)
	require.NoError(t, err)
	assert.NotNil(t, engine.CachedCart())

	require.NoError(t, engine.AddToCart(ctx, productID, 1))
	assert.Nil(t, engine.CachedCart(), "mutation must drop the cached view")

	refetched, err := engine.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, refetched, engine.CachedCart())
	assert.Equal(t, 1, refetched.ItemCount)
}

func TestSyncEngine_MergeOnLogin(t *testing.T) {
	ctx := context.Background()
	productA := uuid.Must(uuid.NewV4())
	productB := uuid.Must(uuid.NewV4())

	t.Run("requires_session", func(t *testing.T) {
		engine := client.NewSyncEngine(client.NewSession(), newFakeCartStore(), newFakeCartStore())
		err := engine.MergeOnLogin(ctx)
		assert.True(t, client.IsKind(err, client.KindAuthRequired))
	})

	t.Run("merges_additively_and_clears_local", func(t *testing.T) {
		remote := newFakeCartStore()
		local := newFakeCartStore()

		// Guest collected two saris locally; one of them already sits in the
		// server cart from an earlier session.
		require.NoError(t, local.UpsertItem(ctx, productA, 2, nil))
		require.NoError(t, local.UpsertItem(ctx, productB, 1, nil))
		require.NoError(t, remote.UpsertItem(ctx, productA, 1, nil))

		engine := client.NewSyncEngine(signedInSession(t), remote, local)
		require.NoError(t, engine.MergeOnLogin(ctx))

		assert.Equal(t, 3, remote.quantity(productA))
		assert.Equal(t, 1, remote.quantity(productB))

		localCart, err := local.GetCart(ctx)
		require.NoError(t, err)
		assert.Empty(t, localCart.Items)
	})

	t.Run("interrupted_merge_retries_without_double_counting", func(t *testing.T) {
		remote := newFakeCartStore()
		local := newFakeCartStore()

		require.NoError(t, local.UpsertItem(ctx, productA, 2, nil))
		require.NoError(t, local.UpsertItem(ctx, productB, 1, nil))

		// Product B's upsert dies mid-merge; items merged before the failure
		// must already be gone from the local store so the retry cannot add
		// them to the server a second time.
		remote.failUpserts = map[uuid.UUID]error{
			productB: &client.Error{Kind: client.KindTransient, Message: "connection reset"},
		}

		engine := client.NewSyncEngine(signedInSession(t), remote, local)

		err := engine.MergeOnLogin(ctx)
		require.Error(t, err)
		assert.True(t, client.IsKind(err, client.KindTransient))

		require.NoError(t, engine.MergeOnLogin(ctx))

		assert.Equal(t, 2, remote.quantity(productA))
		assert.Equal(t, 1, remote.quantity(productB))

		localCart, err := local.GetCart(ctx)
		require.NoError(t, err)
		assert.Empty(t, localCart.Items)
	})
}
