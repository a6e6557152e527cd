package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	TaxRate             = decimal.RequireFromString("0.18")
	DefaultShippingRate = decimal.NewFromInt(25)

	cityShippingRates = map[string]decimal.Decimal{
		"istanbul": decimal.NewFromInt(15),
		"ankara":   decimal.NewFromInt(20),
		"izmir":    decimal.NewFromInt(20),
	}

	cityFolder = strings.NewReplacer("i\u0307", "i", "\u0131", "i")
)

func normalizeCity(city string) string {
	return cityFolder.Replace(strings.ToLower(strings.TrimSpace(city)))
}

// ShippingRate looks the city up case-insensitively; unknown and empty cities
// pay the default rate.
func ShippingRate(city string) decimal.Decimal {
	if r, ok := cityShippingRates[normalizeCity(city)]; ok {
		return r
	}
	return DefaultShippingRate
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func ComputeTotals(subtotal decimal.Decimal, city string) Totals {
	shipping := ShippingRate(city)
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

func CartSubtotal(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Subtotal of a possibly nil cart.
func Subtotal(cart *models.Cart) decimal.Decimal {
	if cart == nil {
		return decimal.Zero
	}
	return CartSubtotal(cart.Items)
}
