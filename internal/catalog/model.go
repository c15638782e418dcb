package catalog

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/vastrakart/vastrakart/internal/pricing"
)

// Product is the read-side view of a catalog product. The cart and order core
// never mutates products; it only prices them.
type Product struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	OriginalPrice   float64   `json:"original_price" db:"original_price"`
	DiscountedPrice *float64  `json:"discounted_price,omitempty" db:"discounted_price"`
	Stock           int       `json:"stock" db:"stock"`
	PrimaryImageURL string    `json:"primary_image_url" db:"primary_image_url"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// EffectivePrice is the price a buyer pays for one unit right now.
func (p Product) EffectivePrice() float64 {
	return pricing.EffectivePrice(p.OriginalPrice, p.DiscountedPrice)
}

// OnSale reports whether the product carries a real discount.
func (p Product) OnSale() bool {
	_, ok := pricing.DiscountPercentage(p.OriginalPrice, p.DiscountedPrice)
	return ok
}
