package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sathicare/booking-core/internal/observability/metrics"
	"github.com/sathicare/booking-core/pkg/logging"
)

var paymentsTracer = otel.Tracer("booking.internal.payments")

// ErrGateway wraps every failure talking to the payment gateway.
var ErrGateway = errors.New("payments: gateway request failed")

// Order is a gateway payment order. Amount is in currency minor units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type OrderRequest struct {
	Amount   int64
	Currency string
	// Notes are echoed back by the gateway dashboard for reconciliation.
	Notes map[string]string
}

// Gateway creates orders and attests callback authenticity. It never books.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifyCallback(orderID, paymentID, signature string) bool
}

// RazorpayGateway talks to a Razorpay-compatible orders API.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	dryRun     bool
	now        func() time.Time
}

func NewRazorpayGateway(keyID, keySecret string, m *metrics.BookingMetrics, logger *logging.Logger) *RazorpayGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayGateway{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    "https://api.razorpay.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (g *RazorpayGateway) WithBaseURL(baseURL string) *RazorpayGateway {
	if baseURL != "" {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
	return g
}

// WithDryRun mints local order ids without calling the gateway.
func (g *RazorpayGateway) WithDryRun(enabled bool) *RazorpayGateway {
	g.dryRun = enabled
	return g
}

type createOrderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (order Order, err error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payments.amount", req.Amount),
		attribute.String("payments.currency", req.Currency),
	)

	start := g.now()
	defer func() {
		g.metrics.ObserveGateway("create_order", err, time.Since(start))
		if err != nil {
			span.RecordError(err)
		}
	}()

	if req.Amount <= 0 {
		return Order{}, fmt.Errorf("payments: amount must be positive, got %d", req.Amount)
	}
	body := createOrderBody{
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
		Receipt:  fmt.Sprintf("receipt_order_%d", start.UnixMilli()),
		Notes:    req.Notes,
	}

	if g.dryRun {
		order := Order{
			ID:       "order_dryrun_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
			Amount:   body.Amount,
			Currency: body.Currency,
			Receipt:  body.Receipt,
			Status:   "created",
		}
		g.logger.Info("payment gateway dry run: skipping order creation", "order_id", order.ID, "amount", order.Amount)
		return order, nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Order{}, fmt.Errorf("payments: encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return Order{}, fmt.Errorf("payments: order request: %w", err)
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Order{}, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed Order
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Order{}, fmt.Errorf("%w: decode: %v", ErrGateway, err)
	}
	if parsed.ID == "" {
		return Order{}, fmt.Errorf("%w: response missing order id", ErrGateway)
	}
	span.SetAttributes(attribute.String("payments.order_id", parsed.ID))
	g.logger.Info("payment order created", "order_id", parsed.ID, "amount", parsed.Amount, "currency", parsed.Currency)
	return parsed, nil
}

// VerifyCallback checks the callback signature against the key secret.
func (g *RazorpayGateway) VerifyCallback(orderID, paymentID, signature string) bool {
	return VerifySignature(g.keySecret, orderID, paymentID, signature)
}
