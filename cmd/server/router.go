package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/popeskul/wa-inbox/internal/handler"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes
	r.Mount("/", h.Routes())

	return r
}
