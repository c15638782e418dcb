package client

import (
	"time"

	"github.com/gofrs/uuid"
)

// Wire types mirroring the service's JSON surface.

type Product struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountedPrice *float64  `json:"discounted_price,omitempty"`
	Stock           int       `json:"stock"`
	PrimaryImageURL string    `json:"primary_image_url"`
}

type CartItem struct {
	ID        uuid.UUID `json:"id,omitempty"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
}

type Cart struct {
	ID         uuid.UUID  `json:"id,omitempty"`
	UserID     uuid.UUID  `json:"user_id,omitempty"`
	Version    int64      `json:"version"`
	Items      []CartItem `json:"cart_items"`
	TotalPrice float64    `json:"total_price"`
	ItemCount  int        `json:"item_count"`
}

// Quantity returns the stored quantity for productID, zero when absent.
func (c *Cart) Quantity(productID uuid.UUID) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

type OrderItem struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"payment_status"`
	Items           []OrderItem `json:"order_items"`
	TotalAmount     float64     `json:"total_amount"`
	ShippingAddress string      `json:"shipping_address"`
	TrackingNumber  *string     `json:"tracking_number,omitempty"`
	PaymentProofURL *string     `json:"payment_proof_url,omitempty"`
	OrderDate       time.Time   `json:"order_date"`
}

// PlacementResult reports the created order and whether the server managed to
// clear the cart afterwards. A false CartCleared means the cart is stale but
// queued for reconciliation; the order itself is durable either way.
type PlacementResult struct {
	Order       *Order `json:"order"`
	CartCleared bool   `json:"cart_cleared"`
}
