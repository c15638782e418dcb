package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vastrakart/vastrakart/pkg/client"
)

func TestRemoteCartStore_GetCartNormalizes404ToEmptyCart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"cart not found"}`))
	}))
	defer server.Close()

	session := signedInSession(t)
	store := client.NewRemoteCartStore(client.New(server.URL, session), session)

	cart, err := store.GetCart(context.Background())
	require.NoError(t, err, "an unwritten cart is a valid empty cart")
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalPrice)
}

func TestRemoteCartStore_GetCartRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":2,"cart_items":[],"total_price":0,"item_count":0}`))
	}))
	defer server.Close()

	session := signedInSession(t)
	store := client.NewRemoteCartStore(client.New(server.URL, session), session)

	cart, err := store.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), cart.Version)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteCartStore_UpsertIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	session := signedInSession(t)
	store := client.NewRemoteCartStore(client.New(server.URL, session), session)

	err := store.UpsertItem(context.Background(), uuid.Must(uuid.NewV4()), 1, nil)
	assert.True(t, client.IsKind(err, client.KindTransient))
	assert.Equal(t, int32(1), calls.Load(), "mutations must not be auto-retried")
}

func TestRemoteCartStore_GuestCallsFailWithAuthRequired(t *testing.T) {
	session := client.NewSession()
	store := client.NewRemoteCartStore(client.New("http://127.0.0.1:0", session), session)

	_, err := store.GetCart(context.Background())
	assert.True(t, client.IsKind(err, client.KindAuthRequired))

	err = store.UpsertItem(context.Background(), uuid.Must(uuid.NewV4()), 1, nil)
	assert.True(t, client.IsKind(err, client.KindAuthRequired))
}

func TestClient_401TearsDownSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"session expired"}`))
	}))
	defer server.Close()

	session := signedInSession(t)
	expired := false
	session.OnExpired(func() { expired = true })

	store := client.NewRemoteCartStore(client.New(server.URL, session), session)

	_, err := store.GetCart(context.Background())
	assert.True(t, client.IsKind(err, client.KindSessionExpired))
	assert.True(t, expired, "401 must fire the expiry hook")

	_, signedIn := session.UserID()
	assert.False(t, signedIn, "401 must clear the session identity")
}

func TestOrderClient_PlaceOrder(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	t.Run("validation_happens_before_any_network_call", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		session := client.NewSession()
		session.SignIn(userID, "token")
		orders := client.NewOrderClient(client.New(server.URL, session), session)

		_, err := orders.PlaceOrder(context.Background(), "   ")
		assert.True(t, client.IsKind(err, client.KindValidation))
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("signed_out_checkout_is_auth_required", func(t *testing.T) {
		session := client.NewSession()
		orders := client.NewOrderClient(client.New("http://127.0.0.1:0", session), session)

		_, err := orders.PlaceOrder(context.Background(), "12 MG Road, Bengaluru")
		assert.True(t, client.IsKind(err, client.KindAuthRequired))
	})

	t.Run("sends_idempotency_key_and_bearer_token", func(t *testing.T) {
		orderID := uuid.Must(uuid.NewV4())
		var gotKey, gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("Idempotency-Key")
			gotAuth = r.Header.Get("Authorization")
			assert.Equal(t, fmt.Sprintf("/users/%s/orders", userID), r.URL.Path)

			var body struct {
				ShippingAddress string `json:"shipping_address"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "12 MG Road, Bengaluru", body.ShippingAddress)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"order":        map[string]any{"id": orderID, "user_id": userID, "status": "pending", "total_amount": 210},
				"cart_cleared": true,
			})
		}))
		defer server.Close()

		session := client.NewSession()
		session.SignIn(userID, "secret-token")
		orders := client.NewOrderClient(client.New(server.URL, session), session)

		result, err := orders.PlaceOrder(context.Background(), "12 MG Road, Bengaluru")
		require.NoError(t, err)

		assert.NotEmpty(t, gotKey, "checkout must carry a client-generated idempotency key")
		assert.Equal(t, "Bearer secret-token", gotAuth)
		assert.True(t, result.CartCleared)
		assert.Equal(t, orderID, result.Order.ID)
		assert.Equal(t, 210.0, result.Order.TotalAmount)
	})
}

func TestClient_GetProduct(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	t.Run("works_without_a_session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products/"+productID.String(), r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                  productID,
				"name":                "Banarasi Saree",
				"original_price":      100,
				"discounted_price":    80,
				"effective_price":     80,
				"discount_percentage": 20,
			})
		}))
		defer server.Close()

		c := client.New(server.URL, client.NewSession())

		detail, err := c.GetProduct(context.Background(), productID)
		require.NoError(t, err)
		assert.Equal(t, "Banarasi Saree", detail.Name)
		assert.Equal(t, 80.0, detail.EffectivePrice)
		require.NotNil(t, detail.DiscountPercentage)
		assert.Equal(t, 20, *detail.DiscountPercentage)
	})

	t.Run("unknown_product_is_not_found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"product not found"}`))
		}))
		defer server.Close()

		c := client.New(server.URL, client.NewSession())

		_, err := c.GetProduct(context.Background(), productID)
		assert.True(t, client.IsKind(err, client.KindNotFound))
	})
}

func TestOrderClient_SetStatusConflictSurfacesAsConflictKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid order status transition: delivered to processing"}`))
	}))
	defer server.Close()

	session := signedInSession(t)
	orders := client.NewOrderClient(client.New(server.URL, session), session)

	_, err := orders.SetStatus(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), "processing", nil)
	assert.True(t, client.IsKind(err, client.KindConflict))
}
