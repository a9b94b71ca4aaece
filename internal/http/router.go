package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxRequestBodySize = 1 << 20

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	RateLimit      int
}

type Handlers struct {
	Cart    *CartHandler
	Session *SessionHandler
	Orders  *OrdersHandler
}

// NewRouter builds the public API. Cart mutations share one per-caller rate
// limit; merge and claim require a signed-in user.
func NewRouter(cfg RouterConfig, h Handlers, tokens tokenValidator, limiter ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(maxRequestBodySize))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader, guestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(Auth(tokens))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)

			r.Group(func(r chi.Router) {
				r.Use(RateLimit(limiter, cfg.RateLimit))
				r.Put("/", h.Cart.ReplaceCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Patch("/items/{key}", h.Cart.UpdateQuantity)
				r.Delete("/items/{key}", h.Cart.RemoveItem)
			})

			r.With(RequireUser).Post("/merge", h.Session.MergeCart)
		})

		r.Route("/guest/session", func(r chi.Router) {
			r.Post("/", h.Session.StartGuestSession)
			r.Delete("/", h.Session.EndGuestSession)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.ListOrders)
			r.With(RequireUser).Post("/claim-guest", h.Session.ClaimGuestOrders)
		})
	})

	return otelhttp.NewHandler(r, "cart-service")
}
