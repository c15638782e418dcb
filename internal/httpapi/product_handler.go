package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/vastrakart/vastrakart/internal/catalog"
	"github.com/vastrakart/vastrakart/internal/pricing"
)

// ProductHandler serves the read-only product lookups the cart display needs:
// effective price and discount percentage for one product. Catalog browsing
// and search live elsewhere.
type ProductHandler struct {
	repo catalog.Repository
}

func NewProductHandler(repo catalog.Repository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

type productResponse struct {
	*catalog.Product
	EffectivePrice     float64 `json:"effective_price"`
	DiscountPercentage *int    `json:"discount_percentage,omitempty"`
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "productId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.repo.GetByID(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	resp := productResponse{
		Product:        p,
		EffectivePrice: p.EffectivePrice(),
	}
	if pct, ok := pricing.DiscountPercentage(p.OriginalPrice, p.DiscountedPrice); ok {
		resp.DiscountPercentage = &pct
	}

	respondWithJSON(w, http.StatusOK, resp)
}
