package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sathicare/booking-core/internal/appointments"
	"github.com/sathicare/booking-core/internal/identity"
	"github.com/sathicare/booking-core/pkg/logging"
)

// Flows is the orchestrator surface the handler drives.
type Flows interface {
	BookDirect(ctx context.Context, caller identity.Principal, req BookRequest) (appointments.Appointment, error)
	CreateOrder(ctx context.Context, caller identity.Principal, req BookRequest) (Checkout, error)
	ConfirmPayment(ctx context.Context, caller identity.Principal, cb Callback) (PaymentResult, error)
}

type Handler struct {
	flows        Flows
	supportEmail string
	logger       *logging.Logger
}

func NewHandler(flows Flows, supportEmail string, logger *logging.Logger) *Handler {
	if flows == nil {
		panic("booking: flows cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{flows: flows, supportEmail: supportEmail, logger: logger}
}

// BookDirect handles POST /appointments.
func (h *Handler) BookDirect(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, invalid("body", "malformed JSON"))
		return
	}
	appt, err := h.flows.BookDirect(r.Context(), principal, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// CreateOrder handles POST /payments/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, invalid("body", "malformed JSON"))
		return
	}
	checkout, err := h.flows.CreateOrder(r.Context(), principal, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// VerifyAndBook handles POST /payments/verify-and-book.
func (h *Handler) VerifyAndBook(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var cb Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		h.writeError(w, invalid("body", "malformed JSON"))
		return
	}
	result, err := h.flows.ConfirmPayment(r.Context(), principal, cb)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Appointment)
}

type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Field        string `json:"field,omitempty"`
	Support      bool   `json:"support,omitempty"`
	SupportEmail string `json:"support_email,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	PaymentID    string `json:"payment_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *ValidationError
	var lost *PostPaymentError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Reason, Code: "validation_error", Field: validation.Field})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not allowed to book", Code: "forbidden"})
	case errors.As(err, &lost):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:        "payment received but the slot was booked by someone else; support will refund you",
			Code:         "post_payment_conflict",
			Support:      true,
			SupportEmail: h.supportEmail,
			OrderID:      lost.OrderID,
			PaymentID:    lost.PaymentID,
		})
	case errors.Is(err, ErrBookingConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "slot already booked, pick another time", Code: "booking_conflict"})
	case errors.Is(err, ErrPaymentVerificationFailed):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "payment could not be verified", Code: "payment_verification_failed"})
	case errors.Is(err, ErrOrderNotFound):
		writeJSON(w, http.StatusGone, errorResponse{
			Error:        "payment order expired or unknown",
			Code:         "order_not_found",
			Support:      true,
			SupportEmail: h.supportEmail,
		})
	case errors.Is(err, ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many payment attempts, try again later", Code: "rate_limited"})
	case errors.Is(err, ErrUpstreamGateway):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment provider unavailable, try again", Code: "upstream_gateway_error"})
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
