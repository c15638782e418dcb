package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gofrs/uuid"
)

// CartStore is the identity-scoped cart contract. The remote implementation
// talks to the server-of-record cart; the local one backs guest sessions.
type CartStore interface {
	// GetCart returns the current cart, defaulting to a well-formed empty
	// cart when none has ever been written.
	GetCart(ctx context.Context) (*Cart, error)
	// UpsertItem sets (never increments) the quantity for productID; zero
	// removes the row. A non-nil expectedVersion makes the write conditional.
	UpsertItem(ctx context.Context, productID uuid.UUID, quantity int, expectedVersion *int64) error
	RemoveItem(ctx context.Context, productID uuid.UUID) error
	Clear(ctx context.Context) error
}

// RemoteCartStore is the CartStore over the REST surface, scoped to the
// session's signed-in user.
type RemoteCartStore struct {
	client  *Client
	session *Session
}

func NewRemoteCartStore(client *Client, session *Session) *RemoteCartStore {
	return &RemoteCartStore{client: client, session: session}
}

func (s *RemoteCartStore) cartPath() (string, error) {
	userID, ok := s.session.UserID()
	if !ok {
		return "", newError(KindAuthRequired, "sign in to use the server cart")
	}
	return fmt.Sprintf("/users/%s/cart", userID), nil
}

func (s *RemoteCartStore) GetCart(ctx context.Context) (*Cart, error) {
	path, err := s.cartPath()
	if err != nil {
		return nil, err
	}

	var cart Cart
	// A 404 means the cart has never been written; that is an empty cart,
	// not a failure.
	found, err := s.client.do(ctx, call{
		method:     http.MethodGet,
		path:       path,
		idempotent: true,
		notFoundOK: true,
	}, &cart)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Cart{Items: make([]CartItem, 0)}, nil
	}
	if cart.Items == nil {
		cart.Items = make([]CartItem, 0)
	}

	return &cart, nil
}

type upsertItemRequest struct {
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int       `json:"quantity"`
	ExpectedVersion *int64    `json:"expected_version,omitempty"`
}

func (s *RemoteCartStore) UpsertItem(ctx context.Context, productID uuid.UUID, quantity int, expectedVersion *int64) error {
	if productID == uuid.Nil {
		return newError(KindValidation, "product id is required")
	}
	if quantity < 0 {
		return newError(KindValidation, "quantity must not be negative")
	}

	path, err := s.cartPath()
	if err != nil {
		return err
	}

	_, err = s.client.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		body: upsertItemRequest{
			ProductID:       productID,
			Quantity:        quantity,
			ExpectedVersion: expectedVersion,
		},
	}, nil)
	return err
}

func (s *RemoteCartStore) RemoveItem(ctx context.Context, productID uuid.UUID) error {
	return s.UpsertItem(ctx, productID, 0, nil)
}

func (s *RemoteCartStore) Clear(ctx context.Context) error {
	path, err := s.cartPath()
	if err != nil {
		return err
	}

	_, err = s.client.do(ctx, call{
		method: http.MethodDelete,
		path:   path,
	}, nil)
	return err
}
