package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	cartResponse "github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/config"
)

const (
	PolicySubtotal       = "subtotal"
	PolicyTaxAndShipping = "tax_and_shipping"
)

// TotalPolicy decides the amount persisted on the order.
type TotalPolicy interface {
	Total(snapshot cartResponse.Snapshot) decimal.Decimal
}

type SubtotalPolicy struct{}

func (SubtotalPolicy) Total(snapshot cartResponse.Snapshot) decimal.Decimal {
	return snapshot.TotalPrice()
}

// TaxShippingPolicy adds tax on the subtotal and a flat shipping fee that is
// waived from FreeShippingThreshold on.
type TaxShippingPolicy struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

func (p TaxShippingPolicy) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingFee
}

func (p TaxShippingPolicy) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.TaxRate).Round(2)
}

func (p TaxShippingPolicy) Total(snapshot cartResponse.Snapshot) decimal.Decimal {
	subtotal := snapshot.TotalPrice()
	return subtotal.Add(p.Tax(subtotal)).Add(p.Shipping(subtotal))
}

func NewTotalPolicy(cfg config.Checkout) (TotalPolicy, error) {
	switch cfg.TotalPolicy {
	case "", PolicySubtotal:
		return SubtotalPolicy{}, nil
	case PolicyTaxAndShipping:
		taxRate, err := decimal.NewFromString(cfg.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("failed parsing tax_rate=%s with error=%w", cfg.TaxRate, err)
		}
		shippingFee, err := decimal.NewFromString(cfg.ShippingFee)
		if err != nil {
			return nil, fmt.Errorf("failed parsing shipping_fee=%s with error=%w", cfg.ShippingFee, err)
		}
		threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
		if err != nil {
			return nil, fmt.Errorf(
				"failed parsing free_shipping_threshold=%s with error=%w",
				cfg.FreeShippingThreshold,
				err,
			)
		}
		return TaxShippingPolicy{TaxRate: taxRate, ShippingFee: shippingFee, FreeShippingThreshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown total_policy=%s", cfg.TotalPolicy)
	}
}
