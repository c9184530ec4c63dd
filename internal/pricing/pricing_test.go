package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

func TestDerivedPriceAppliesMarkupAndRounds(t *testing.T) {
	got := pricing.DerivedPrice([]pricing.Constituent{
		{UnitCost: 200, Quantity: decimal.NewFromInt(3)},
		{UnitCost: 150, Quantity: decimal.NewFromInt(2)},
	}, pricing.DefaultMarkup)
	require.Equal(t, pricing.Money(1530), got)
}

func TestDerivedPriceHalfUp(t *testing.T) {
	// 0.15 * 1.7 = 0.255 -> 0.26
	got := pricing.DerivedPrice([]pricing.Constituent{
		{UnitCost: 15, Quantity: decimal.NewFromInt(1)},
	}, pricing.DefaultMarkup)
	require.Equal(t, pricing.Money(26), got)
}

func TestDerivedPriceFractionalQuantity(t *testing.T) {
	// 4.00 * 0.25 * 1.7 = 1.70
	got := pricing.DerivedPrice([]pricing.Constituent{
		{UnitCost: 400, Quantity: decimal.RequireFromString("0.25")},
	}, pricing.DefaultMarkup)
	require.Equal(t, pricing.Money(170), got)
}

func TestDerivedPriceEmpty(t *testing.T) {
	require.Equal(t, pricing.Money(0), pricing.DerivedPrice(nil, pricing.DefaultMarkup))
}

func TestPriceFieldManualOverride(t *testing.T) {
	var f pricing.PriceField
	recipe := []pricing.Constituent{{UnitCost: 200, Quantity: decimal.NewFromInt(3)}}
	f.Recompute(recipe, pricing.DefaultMarkup)
	require.Equal(t, pricing.Money(1020), f.Effective())

	f.SetManual(1500)
	require.True(t, f.Manual())
	recipe = append(recipe, pricing.Constituent{UnitCost: 150, Quantity: decimal.NewFromInt(2)})
	f.Recompute(recipe, pricing.DefaultMarkup)
	require.Equal(t, pricing.Money(1500), f.Effective())

	require.Equal(t, pricing.Money(1020), f.Derived(), "derived price frozen while manual")

	f.SetManual(0)
	require.False(t, f.Manual())
	require.Equal(t, pricing.Money(1530), f.Derived())
	require.Equal(t, pricing.Money(1530), f.Effective())
}

func TestValidateManufacturedRejectsNegativeCost(t *testing.T) {
	errs := pricing.ValidateManufactured(pricing.ArticleDraft{
		Denomination: "Pizza",
		Price:        100,
		Ingredients:  []pricing.Ingredient{{ID: 1, UnitCost: decimal.RequireFromString("-1"), Quantity: decimal.NewFromInt(1)}},
	})
	require.Contains(t, errs, "detalles[0].costoUnitario")
}

func TestDeliveryFee(t *testing.T) {
	rule := pricing.DefaultDeliveryRule
	require.Equal(t, pricing.Money(399), rule.FeeFor(true, 2000))
	require.Equal(t, pricing.Money(0), rule.FeeFor(true, 2500))
	require.Equal(t, pricing.Money(0), rule.FeeFor(false, 2000))
}

func TestComputeAddsDeliveryFee(t *testing.T) {
	items := []pricing.Item{{Qty: 2, UnitPrice: 1000}, {Qty: 0, UnitPrice: 999}}
	sum := pricing.Compute(items, pricing.DefaultDeliveryRule, true)
	require.Equal(t, pricing.Summary{Subtotal: 2000, DeliveryFee: 399, Total: 2399}, sum)

	items = append(items, pricing.Item{Qty: 1, UnitPrice: 500})
	sum = pricing.Compute(items, pricing.DefaultDeliveryRule, true)
	require.Equal(t, pricing.Summary{Subtotal: 2500, DeliveryFee: 0, Total: 2500}, sum)
}

func TestValidateManufactured(t *testing.T) {
	errs := pricing.ValidateManufactured(pricing.ArticleDraft{})
	require.Contains(t, errs, "denominacion")
	require.Contains(t, errs, "detalles")
	require.Contains(t, errs, "precioVenta")

	errs = pricing.ValidateManufactured(pricing.ArticleDraft{
		Denomination: "Pizza",
		Price:        1530,
		Ingredients: []pricing.Ingredient{
			{ID: 1, UnitCost: decimal.RequireFromString("2.00"), Quantity: decimal.NewFromInt(3)},
			{ID: 1, UnitCost: decimal.RequireFromString("1.50"), Quantity: decimal.NewFromInt(2)},
		},
	})
	require.Equal(t, map[string]string{"detalles[1].insumoId": "duplicates detalles[0]"}, errs)

	errs = pricing.ValidateManufactured(pricing.ArticleDraft{
		Denomination: "Pizza",
		Price:        1530,
		Ingredients:  []pricing.Ingredient{{ID: 1, UnitCost: decimal.RequireFromString("2.00"), Quantity: decimal.NewFromInt(3)}},
	})
	require.Empty(t, errs)
}

func TestMoneyConversions(t *testing.T) {
	require.Equal(t, pricing.Money(1530), pricing.FromFloat(15.3))
	require.InDelta(t, 15.3, pricing.ToFloat(1530), 0.0001)
	require.Equal(t, "ARS 3.99", pricing.Format(399, "ARS"))
}

func TestParseMarkup(t *testing.T) {
	m, err := pricing.ParseMarkup("")
	require.NoError(t, err)
	require.True(t, m.Equal(pricing.DefaultMarkup))

	_, err = pricing.ParseMarkup("-1")
	require.Error(t, err)
}
