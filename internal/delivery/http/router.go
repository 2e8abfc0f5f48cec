package http

import (
	"net/http"
	"time"

	"github.com/billvault/checkout-service/internal/delivery/http/handlers"
	"github.com/billvault/checkout-service/internal/delivery/http/middleware"
	"github.com/billvault/checkout-service/internal/usecase/checkout"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(uc checkout.CheckoutUsecase, requestCeiling time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	checkoutHandler := handlers.NewCheckoutHandler(uc)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequestTimeout(requestCeiling))
		checkoutHandler.RegisterRoutes(r)
	})

	return r
}
