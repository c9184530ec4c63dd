package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Ingredient is one line of a manufactured article recipe. UnitCost is in
// major units, as the backend sends it.
type Ingredient struct {
	ID       int64           `json:"insumoId" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"costoUnitario"`
	Quantity decimal.Decimal `json:"cantidad"`
}

// ArticleDraft is the manufactured article form as submitted for authoring.
type ArticleDraft struct {
	Denomination string       `json:"denominacion" validate:"required"`
	Ingredients  []Ingredient `json:"detalles" validate:"min=1,dive"`
	Price        Money        `json:"precioVenta" validate:"gt=0"`
}

// Constituents maps the recipe onto pricing constituents.
func (d ArticleDraft) Constituents() []Constituent {
	out := make([]Constituent, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		out = append(out, Constituent{UnitCost: FromDecimal(ing.UnitCost), Quantity: ing.Quantity})
	}
	return out
}

// ValidateManufactured returns field errors for the draft, empty when valid.
// Denomination uniqueness is enforced by the backend.
func ValidateManufactured(d ArticleDraft) map[string]string {
	errs := map[string]string{}
	if err := common.Validator().Struct(d); err != nil {
		errs = common.FieldErrors(err)
	}
	seen := make(map[int64]int, len(d.Ingredients))
	for i, ing := range d.Ingredients {
		if ing.UnitCost.IsNegative() {
			errs[fmt.Sprintf("detalles[%d].costoUnitario", i)] = "must not be negative"
		}
		if !ing.Quantity.IsPositive() {
			errs[fmt.Sprintf("detalles[%d].cantidad", i)] = "must be greater than 0"
		}
		if ing.ID <= 0 {
			continue
		}
		if first, ok := seen[ing.ID]; ok {
			errs[fmt.Sprintf("detalles[%d].insumoId", i)] = fmt.Sprintf("duplicates detalles[%d]", first)
			continue
		}
		seen[ing.ID] = i
	}
	return errs
}
