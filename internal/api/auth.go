package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"slotify/internal/config"

	"golang.org/x/time/rate"
)

var errUnauthorized = errors.New("invalid api key")

// HTTPAuth provides API-key auth and per-key rate limiting. The
// payment webhook endpoint is exempt from auth: gateways do not send
// our keys, and the reconciler validates payloads on its own.
type HTTPAuth struct {
	cfg      config.APIConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), "")
				return
			}
		}

		if !a.allow(r) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/api/v1/payment-webhook")
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	header := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = "x-api-key"
	}

	apiKey := strings.TrimSpace(r.Header.Get(header))
	if apiKey == "" {
		return errors.New("missing api key header")
	}

	for _, k := range a.cfg.Auth.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(apiKey)) == 1 {
			return nil
		}
	}
	return errUnauthorized
}

func (a *HTTPAuth) allow(r *http.Request) bool {
	if a.cfg.RateLimit.RPS <= 0 {
		return true
	}
	return a.getLimiter(a.clientKey(r)).Allow()
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	header := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if header == "" {
		header = "x-api-key"
	}
	if apiKey := strings.TrimSpace(r.Header.Get(header)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}
