// Package pricing computes effective prices and discount figures for catalog
// products. All functions are pure; callers are responsible for supplying a
// positive original price.
package pricing

import "math"

// EffectivePrice returns the discounted price when one is set, otherwise the
// original price. A nil discount means "no discount", never zero.
func EffectivePrice(original float64, discounted *float64) float64 {
	if discounted != nil {
		return *discounted
	}
	return original
}

// DiscountPercentage returns the rounded percentage saved when discounted is
// set and strictly below original. The second return is false when there is no
// discount to report. Rounding is nearest-integer, half away from zero.
func DiscountPercentage(original float64, discounted *float64) (int, bool) {
	if discounted == nil || *discounted >= original {
		return 0, false
	}
	pct := (original - *discounted) / original * 100
	return int(math.Round(pct)), true
}
