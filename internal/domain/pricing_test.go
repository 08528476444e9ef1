package domain

import (
	"math"
	"testing"
)

func TestComputeTotals_DiscountAfterServiceCharge(t *testing.T) {
	// Discount applies to (subtotal + service charge): 1000 + 50, then 10%.
	got := ComputeTotals(1000, 5, true, 10)
	if got.ServiceCharge != 50 {
		t.Errorf("service charge = %v, want 50", got.ServiceCharge)
	}
	if got.Discount != 105 {
		t.Errorf("discount = %v, want 105 (not 100)", got.Discount)
	}
	if got.Total != 945 {
		t.Errorf("total = %v, want 945", got.Total)
	}
}

func TestComputeTotals_NoCard(t *testing.T) {
	got := ComputeTotals(1300, 5, true, 0)
	if got.Subtotal != 1300 || got.ServiceCharge != 65 || got.Discount != 0 || got.Total != 1365 {
		t.Errorf("got %+v, want 1300/65/0/1365", got)
	}
}

func TestComputeTotals_TenPercentCard(t *testing.T) {
	got := ComputeTotals(1300, 5, true, 10)
	if got.Discount != 136.5 {
		t.Errorf("discount = %v, want 136.5", got.Discount)
	}
	if got.Total != 1228.5 {
		t.Errorf("total = %v, want 1228.5", got.Total)
	}
}

func TestComputeTotals_ServiceChargeDisabled(t *testing.T) {
	got := ComputeTotals(1000, 5, false, 10)
	if got.ServiceCharge != 0 {
		t.Errorf("service charge = %v, want 0", got.ServiceCharge)
	}
	if got.Total != 900 {
		t.Errorf("total = %v, want 900", got.Total)
	}
}

func TestComputeTotals_Identity(t *testing.T) {
	cases := []struct {
		subtotal, service, discount float64
		enabled                     bool
	}{
		{0, 5, 0, true},
		{1300, 5, 10, true},
		{999.99, 12, 100, true},
		{42, 0, 50, false},
	}
	for _, c := range cases {
		got := ComputeTotals(c.subtotal, c.service, c.enabled, c.discount)
		if diff := math.Abs(got.Total - (got.Subtotal + got.ServiceCharge - got.Discount)); diff > 1e-9 {
			t.Errorf("ComputeTotals(%v,%v,%v,%v): total %v != subtotal+service-discount",
				c.subtotal, c.service, c.enabled, c.discount, got.Total)
		}
		if got.Total < 0 {
			t.Errorf("negative total %v", got.Total)
		}
	}
}

func TestComputeTotals_DegradesOnBadDiscount(t *testing.T) {
	// Out-of-range discounts are ignored rather than producing a bogus total.
	for _, pct := range []float64{-10, 150, math.NaN()} {
		got := ComputeTotals(1000, 5, true, pct)
		if got.Discount != 0 {
			t.Errorf("discount %v for percent %v, want 0", got.Discount, pct)
		}
		if got.Total != 1050 {
			t.Errorf("total %v for percent %v, want 1050", got.Total, pct)
		}
	}
}

func TestComputeTotals_NonFiniteSubtotal(t *testing.T) {
	got := ComputeTotals(math.NaN(), 5, true, 10)
	if got.Discount != 0 {
		t.Errorf("expected discount dropped on computation error, got %v", got.Discount)
	}
}
