package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/vastrakart/internal/cart"
	"github.com/vastrakart/vastrakart/internal/catalog"
	"github.com/vastrakart/vastrakart/internal/order"
)

// NewRouter wires the REST surface. Cart and order routes sit behind
// bearer-token auth; product reads and /health stay open.
func NewRouter(cartSvc cart.Service, orderSvc order.Service, products catalog.Repository, verifier TokenVerifier) *chi.Mux {
	cartHandler := NewCartHandler(cartSvc)
	orderHandler := NewOrderHandler(orderSvc)
	productHandler := NewProductHandler(products)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/products/{productId}", productHandler.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(verifier))

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/cart", requireOwner(cartHandler.GetCart))
			r.Post("/cart", requireOwner(cartHandler.UpsertItem))
			r.Delete("/cart", requireOwner(cartHandler.ClearCart))

			r.Post("/orders", requireOwner(orderHandler.PlaceOrder))
			r.Get("/orders", requireOwner(orderHandler.ListOrders))
			r.Get("/orders/{orderId}", requireOwner(orderHandler.GetOrder))
			r.Patch("/orders/{orderId}", requireAdmin(orderHandler.UpdateStatus))
		})

		r.Get("/orders", requireAdmin(orderHandler.ListAllOrders))
	})

	return r
}
