package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vastrakart/vastrakart/internal/catalog"
)

func ptr(v float64) *float64 { return &v }

func TestProduct_EffectivePriceAndOnSale(t *testing.T) {
	tests := []struct {
		name          string
		product       catalog.Product
		expectedPrice float64
		expectedSale  bool
	}{
		{
			name:          "discounted",
			product:       catalog.Product{OriginalPrice: 100, DiscountedPrice: ptr(80)},
			expectedPrice: 80,
			expectedSale:  true,
		},
		{
			name:          "no_discount",
			product:       catalog.Product{OriginalPrice: 50},
			expectedPrice: 50,
			expectedSale:  false,
		},
		{
			name:          "discount_equal_to_original_is_not_a_sale",
			product:       catalog.Product{OriginalPrice: 100, DiscountedPrice: ptr(100)},
			expectedPrice: 100,
			expectedSale:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedPrice, tt.product.EffectivePrice())
			assert.Equal(t, tt.expectedSale, tt.product.OnSale())
		})
	}
}
