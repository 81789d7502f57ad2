// Package api exposes the public HTTP surface: availability, bookings,
// checkout, payment webhooks and reports.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"slotify/internal/booking"
	"slotify/internal/config"
	"slotify/internal/export"
	"slotify/internal/metrics"
	"slotify/internal/payment"

	"github.com/rs/zerolog"
)

type HTTPServer struct {
	cfg        config.APIConfig
	bookings   *booking.Service
	payments   *payment.Orchestrator
	reconciler *payment.Reconciler
	exporter   *export.Exporter
	server     *http.Server
	auth       *HTTPAuth
	logger     zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *booking.Service,
	payments *payment.Orchestrator,
	reconciler *payment.Reconciler,
	exporter *export.Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		bookings:   bookings,
		payments:   payments,
		reconciler: reconciler,
		exporter:   exporter,
		auth:       NewHTTPAuth(cfg),
		logger:     logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/v1/businesses/", srv.handleBusinessSubtree)
	mux.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingSubtree)
	mux.HandleFunc("/api/v1/checkout", srv.handleCheckout)
	mux.HandleFunc("/api/v1/payment-webhook", srv.handlePaymentWebhook)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, statusCode, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
