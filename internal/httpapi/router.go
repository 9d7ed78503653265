// Package httpapi is the HTTP boundary: routing, session/identity
// middleware and the mapping from domain errors to response codes. No
// business rules live here.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/adiva-s/ResourceRite/internal/cart"
	"github.com/adiva-s/ResourceRite/internal/checkout"
	"github.com/adiva-s/ResourceRite/internal/ledger"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	WebhookSecret  []byte
	// AllowGuestCarts decides whether an anonymous session may hold a cart.
	// Checkout and purchase history always require an identity.
	AllowGuestCarts bool
}

// NewRouter assembles the full route tree. The webhook route sits outside
// the session/identity middleware: the processor is not a browser.
func NewRouter(
	carts *cart.Service,
	checkouts *checkout.Service,
	led ledger.Ledger,
	cfg RouterConfig,
) http.Handler {
	cartHandler := NewCartHandler(carts, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(checkouts, cfg.WebhookSecret, cfg.RequestTimeout)
	purchasesHandler := NewPurchasesHandler(led, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/v1/checkout/webhook", checkoutHandler.Webhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(IdentityMiddleware)

		r.Route("/cart", func(r chi.Router) {
			if !cfg.AllowGuestCarts {
				r.Use(RequireUser)
			}
			r.Get("/", cartHandler.GetCart)
			r.Post("/add/{productID}", cartHandler.Add)
			r.Post("/increase/{productID}", cartHandler.Increase)
			r.Post("/decrease/{productID}", cartHandler.Decrease)
			r.Post("/remove/{productID}", cartHandler.Remove)
			r.Post("/clear", cartHandler.Clear)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.With(RequireUser).Post("/", checkoutHandler.Begin)
			r.Get("/success", checkoutHandler.Success)
			r.Get("/cancel", checkoutHandler.Cancel)
		})

		r.With(RequireUser).Get("/purchases", purchasesHandler.List)
	})

	return otelhttp.NewHandler(r, "marketplace")
}
