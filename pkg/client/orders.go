package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
)

// OrderClient places orders and reads order history for the signed-in user,
// plus the admin console calls.
type OrderClient struct {
	client  *Client
	session *Session
}

func NewOrderClient(client *Client, session *Session) *OrderClient {
	return &OrderClient{client: client, session: session}
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

// PlaceOrder submits checkout for the current cart. Validation failures are
// rejected before any network attempt. Each call carries a fresh client-side
// idempotency key and is never auto-retried: if the caller retries after a
// transport failure it must reuse the returned error's context deliberately,
// and the server dedups on the key.
func (o *OrderClient) PlaceOrder(ctx context.Context, shippingAddress string) (*PlacementResult, error) {
	userID, ok := o.session.UserID()
	if !ok {
		return nil, newError(KindAuthRequired, "sign in to place an order")
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, newError(KindValidation, "shipping address is required")
	}

	key, err := uuid.NewV4()
	if err != nil {
		return nil, wrapError(KindValidation, fmt.Errorf("failed to generate idempotency key: %w", err))
	}

	var result PlacementResult
	_, err = o.client.do(ctx, call{
		method:  http.MethodPost,
		path:    fmt.Sprintf("/users/%s/orders", userID),
		body:    placeOrderRequest{ShippingAddress: shippingAddress},
		headers: map[string]string{"Idempotency-Key": key.String()},
	}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (o *OrderClient) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	userID, ok := o.session.UserID()
	if !ok {
		return nil, newError(KindAuthRequired, "sign in to view orders")
	}

	var order Order
	_, err := o.client.do(ctx, call{
		method:     http.MethodGet,
		path:       fmt.Sprintf("/users/%s/orders/%s", userID, orderID),
		idempotent: true,
	}, &order)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (o *OrderClient) ListOrders(ctx context.Context) ([]Order, error) {
	userID, ok := o.session.UserID()
	if !ok {
		return nil, newError(KindAuthRequired, "sign in to view orders")
	}

	var orders []Order
	_, err := o.client.do(ctx, call{
		method:     http.MethodGet,
		path:       fmt.Sprintf("/users/%s/orders", userID),
		idempotent: true,
	}, &orders)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

type setStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// SetStatus drives the admin status machine for one order.
func (o *OrderClient) SetStatus(ctx context.Context, userID, orderID uuid.UUID, status string, trackingNumber *string) (*Order, error) {
	var order Order
	_, err := o.client.do(ctx, call{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/users/%s/orders/%s", userID, orderID),
		body:   setStatusRequest{Status: status, TrackingNumber: trackingNumber},
	}, &order)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ListAllOrders is the admin dashboard's order table feed.
func (o *OrderClient) ListAllOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	_, err := o.client.do(ctx, call{
		method:     http.MethodGet,
		path:       "/orders",
		idempotent: true,
	}, &orders)
	if err != nil {
		return nil, err
	}

	return orders, nil
}
