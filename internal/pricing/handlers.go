package pricing

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes the price suggestion used by the manufactured article form.
type Handler struct {
	Markup   decimal.Decimal
	Currency string
}

type manufacturedRequest struct {
	Denomination string           `json:"denominacion"`
	Ingredients  []Ingredient     `json:"detalles"`
	ManualPrice  *decimal.Decimal `json:"precioManual"`
}

// Manufactured derives the sale price from the ingredient list and validates the
// draft. Amounts travel in major units like the rest of the backend wire.
func (h *Handler) Manufactured(w http.ResponseWriter, r *http.Request) {
	var req manufacturedRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	markup := h.Markup
	if markup.IsZero() {
		markup = DefaultMarkup
	}
	draft := ArticleDraft{Denomination: req.Denomination, Ingredients: req.Ingredients}

	var field PriceField
	field.Recompute(draft.Constituents(), markup)
	if req.ManualPrice != nil {
		field.SetManual(FromDecimal(*req.ManualPrice))
	}
	draft.Price = field.Effective()

	errs := ValidateManufactured(draft)
	common.Data(w, http.StatusOK, map[string]any{
		"derivedPrice":   ToFloat(field.Derived()),
		"effectivePrice": ToFloat(field.Effective()),
		"manual":         field.Manual(),
		"formatted":      Format(field.Effective(), h.Currency),
		"valid":          len(errs) == 0,
		"errors":         errs,
	})
}
