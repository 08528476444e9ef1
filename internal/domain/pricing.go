package domain

import "math"

// Totals is the pricing breakdown for a cart or order. The discount is taken
// from (subtotal + service charge), not from the subtotal alone.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	ServiceCharge float64 `json:"service_charge"`
	Discount      float64 `json:"discount"`
	Total         float64 `json:"total"`
}

// ComputeTotals applies the service charge and then the percentage discount.
// A breakdown that would come out negative or non-finite degrades to
// subtotal + service charge with no discount.
func ComputeTotals(subtotal, servicePercent float64, serviceEnabled bool, discountPercent float64) Totals {
	serviceCharge := 0.0
	if serviceEnabled {
		serviceCharge = subtotal * servicePercent / 100
	}
	beforeDiscount := subtotal + serviceCharge

	discount := 0.0
	if discountPercent > 0 && discountPercent <= 100 {
		discount = beforeDiscount * discountPercent / 100
	}
	total := beforeDiscount - discount

	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return Totals{
			Subtotal:      subtotal,
			ServiceCharge: serviceCharge,
			Total:         beforeDiscount,
		}
	}

	return Totals{
		Subtotal:      subtotal,
		ServiceCharge: serviceCharge,
		Discount:      discount,
		Total:         total,
	}
}
