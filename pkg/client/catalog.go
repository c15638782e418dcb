package client

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"
)

// ProductDetail is a Product with the server-computed pricing fields. Guest
// carts only store product IDs and quantities, so the UI fetches these to show
// line prices and totals before sign-in.
type ProductDetail struct {
	Product
	EffectivePrice     float64 `json:"effective_price"`
	DiscountPercentage *int    `json:"discount_percentage,omitempty"`
}

// TotalWith prices a cart whose items carry no product snapshot, which is how
// the guest local store keeps them. details is keyed by product id, typically
// filled by GetProduct; items without a detail contribute nothing.
func (c *Cart) TotalWith(details map[uuid.UUID]ProductDetail) float64 {
	total := 0.0
	for _, item := range c.Items {
		if d, ok := details[item.ProductID]; ok {
			total += d.EffectivePrice * float64(item.Quantity)
		}
	}
	return total
}

// GetProduct fetches a single product. Product reads are public and safe to
// retry.
func (c *Client) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDetail, error) {
	if productID == uuid.Nil {
		return nil, newError(KindValidation, "product id is required")
	}

	var detail ProductDetail
	_, err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/products/" + productID.String(),
		idempotent: true,
	}, &detail)
	if err != nil {
		return nil, err
	}

	return &detail, nil
}
