package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/vastrakart/vastrakart/internal/cart"
)

// CartHandler handles HTTP requests for the server-of-record cart.
type CartHandler struct {
	svc cart.Service
}

func NewCartHandler(svc cart.Service) *CartHandler {
	return &CartHandler{svc: svc}
}

type upsertItemRequest struct {
	ProductID       uuid.UUID `json:"product_id"`
	Quantity        int       `json:"quantity"`
	ExpectedVersion *int64    `json:"expected_version,omitempty"`
}

// GetCart returns the user's cart. A user who has never written a cart gets
// an empty one, never a 404.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	c, err := h.svc.GetCart(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// UpsertItem sets the quantity for one product; quantity zero removes it.
// Passing expected_version turns the write into a compare-and-set that fails
// with 409 when the cart has moved on.
func (h *CartHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req upsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpsertItem(r.Context(), userID, req.ProductID, req.Quantity, req.ExpectedVersion); err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearCart empties the cart; clearing an absent cart succeeds.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "userId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.svc.Clear(r.Context(), userID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
