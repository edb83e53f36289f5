package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Logger *zap.Logger

	CORS *CORSConfig

	// RateLimiter is optional; the caller owns it and stops it on shutdown.
	RateLimiter *RateLimiter

	RequestTimeout time.Duration
}

// Chain wraps handler with request id, logging, recovery, CORS, rate limiting and timeout,
// outermost first. Identity is applied per route.
func Chain(config *Config) func(http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		h := handler

		h = Timeout(config.RequestTimeout)(h)

		if config.RateLimiter != nil {
			h = config.RateLimiter.Middleware()(h)
		}

		if config.CORS != nil {
			h = CORS(config.CORS)(h)
		}

		h = Recovery(config.Logger)(h)

		h = Logger(config.Logger)(h)

		h = RequestID(h)

		return h
	}
}
