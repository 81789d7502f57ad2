package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"slotify/internal/booking"
	"slotify/internal/database"
	"slotify/internal/models"
	"slotify/internal/payment"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBusinessSubtree routes /api/v1/businesses/{id}/slots and
// /api/v1/businesses/{id}/export.
func (s *HTTPServer) handleBusinessSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/businesses/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "not found", "")
		return
	}

	businessID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || businessID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid business id", "")
		return
	}

	switch parts[1] {
	case "slots":
		s.handleSlots(w, r, businessID)
	case "export":
		s.handleExport(w, r, businessID)
	default:
		writeError(w, http.StatusNotFound, "not found", "")
	}
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request, businessID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required", "")
		return
	}
	serviceID, err := strconv.ParseInt(r.URL.Query().Get("service_id"), 10, 64)
	if err != nil || serviceID <= 0 {
		writeError(w, http.StatusBadRequest, "service_id is required", "")
		return
	}

	slots, err := s.bookings.GetAvailableSlots(r.Context(), businessID, serviceID, dateStr)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"business_id": businessID,
		"date":        dateStr,
		"slots":       slots,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, businessID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "exports are disabled", "")
		return
	}

	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", "")
		return
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD", "")
			return
		}
	}

	filePath, err := s.exporter.BookingsReport(r.Context(), businessID, from, to)
	if err != nil {
		s.logger.Error().Err(err).Int64("business_id", businessID).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed", "")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(filePath))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, filePath)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req booking.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	created, err := s.bookings.CreateBooking(r.Context(), &req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleBookingSubtree routes /api/v1/bookings/{id} and its
// /cancel and /confirm actions. The business id always arrives
// explicitly, never inferred from the booking row.
func (s *HTTPServer) handleBookingSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(rest, "/")

	bookingID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id", "")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetBooking(w, r, bookingID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteBooking(w, r, bookingID)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		s.handleCancelBooking(w, r, bookingID)
	case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
		s.handleConfirmBooking(w, r, bookingID)
	default:
		writeError(w, http.StatusNotFound, "not found", "")
	}
}

func businessIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("business_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("business_id is required")
	}
	return id, nil
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, bookingID int64) {
	businessID, err := businessIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	b, err := s.bookings.GetBooking(r.Context(), businessID, bookingID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request, bookingID int64) {
	businessID, err := businessIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := s.bookings.DeleteBooking(r.Context(), businessID, bookingID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request, bookingID int64) {
	var req struct {
		BusinessID int64  `json:"business_id"`
		Reason     string `json:"reason"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "business_id is required", "")
		return
	}

	if err := s.bookings.CancelBooking(r.Context(), req.BusinessID, bookingID, req.Reason); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request, bookingID int64) {
	var req struct {
		BusinessID int64 `json:"business_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.BusinessID <= 0 {
		writeError(w, http.StatusBadRequest, "business_id is required", "")
		return
	}

	b, err := s.bookings.ConfirmBooking(r.Context(), req.BusinessID, bookingID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleCheckout opens a hosted payment session. Misconfiguration and
// gateway rejections are client-visible 400s with details; only truly
// unexpected faults turn into a 500.
func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req struct {
		BookingID  int64  `json:"booking_id"`
		BusinessID int64  `json:"business_id"`
		Gateway    string `json:"gateway"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.BookingID <= 0 || req.BusinessID <= 0 || req.Gateway == "" {
		writeError(w, http.StatusBadRequest, "booking_id, business_id and gateway are required", "")
		return
	}

	checkoutURL, err := s.payments.CreateCheckout(r.Context(), req.BookingID, req.BusinessID, req.Gateway)
	if err != nil {
		var gwErr *payment.GatewayError
		switch {
		case errors.As(err, &gwErr):
			writeError(w, http.StatusBadRequest, "checkout failed", gwErr.Reason)
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "booking not found", "")
		default:
			s.logger.Error().Err(err).Int64("booking_id", req.BookingID).Msg("checkout failed")
			writeError(w, http.StatusInternalServerError, "internal error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": checkoutURL})
}

// handlePaymentWebhook applies a gateway callback. The response is sent
// only after the local state transition committed, so a gateway retry
// after a crash replays into the idempotent reconciler.
func (s *HTTPServer) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	gateway := strings.TrimSpace(r.URL.Query().Get("gateway"))
	if gateway == "" {
		writeError(w, http.StatusBadRequest, "gateway is required", "")
		return
	}

	if err := s.reconciler.Process(r.Context(), gateway, r); err != nil {
		if errors.Is(err, payment.ErrUnrecognizedWebhook) {
			writeError(w, http.StatusBadRequest, "unrecognized webhook", "")
			return
		}
		s.logger.Error().Err(err).Str("gateway", gateway).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "the requested slot was just booked by someone else")
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "")
	case errors.Is(err, database.ErrPastDate):
		writeError(w, http.StatusBadRequest, "slot is in the past or inside the minimum advance window", "")
	case errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, "date is beyond the booking window", "")
	case errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}
