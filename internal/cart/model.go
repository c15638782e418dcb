package cart

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vastrakart/vastrakart/internal/catalog"
	"github.com/vastrakart/vastrakart/internal/pricing"
)

// CartItem is one product row in a cart. At most one row exists per product
// per cart; a quantity of zero is never stored, it means the row is absent.
type CartItem struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	CartID    uuid.UUID        `json:"cart_id" db:"cart_id"`
	ProductID uuid.UUID        `json:"product_id" db:"product_id"`
	Quantity  int              `json:"quantity" db:"quantity"`
	Product   *catalog.Product `json:"product,omitempty" db:"-"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// Cart is the server-of-record cart for one user. Version increments on every
// mutation and backs the optimistic-concurrency check on upserts.
type Cart struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Version    int64      `json:"version" db:"version"`
	Items      []CartItem `json:"cart_items" db:"-"`
	TotalPrice float64    `json:"total_price" db:"-"`
	ItemCount  int        `json:"item_count" db:"-"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Recalculate refreshes the derived totals from the attached products.
// Items without a loaded product contribute nothing to the total.
func (c *Cart) Recalculate() {
	total := 0.0
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
		if item.Product != nil {
			total += pricing.EffectivePrice(item.Product.OriginalPrice, item.Product.DiscountedPrice) * float64(item.Quantity)
		}
	}
	c.TotalPrice = total
	c.ItemCount = count
}

// EmptyCart returns the well-formed cart served when a user has never written
// one. Absence of a cart is a valid state, not an error.
func EmptyCart(userID uuid.UUID) *Cart {
	return &Cart{
		UserID:  userID,
		Version: 0,
		Items:   make([]CartItem, 0),
	}
}
