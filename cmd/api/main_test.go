package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/sathicare/booking-core/internal/config"
	"github.com/sathicare/booking-core/internal/notify"
	"github.com/sathicare/booking-core/pkg/logging"
)

func TestSetupMetricsExposesBookingMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveReservation("direct", "reserved")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "booking_reservations_total") {
		t.Fatalf("expected reservations counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestNewRedisClientTLS(t *testing.T) {
	plain := newRedisClient(&appconfig.Config{RedisAddr: "localhost:6379"})
	defer plain.Close()
	if plain.Options().TLSConfig != nil {
		t.Fatalf("expected no TLS by default")
	}

	secure := newRedisClient(&appconfig.Config{RedisAddr: "localhost:6380", RedisTLS: true})
	defer secure.Close()
	if secure.Options().TLSConfig == nil {
		t.Fatalf("expected TLS config when REDIS_TLS is set")
	}
}

func TestSetupEmailSender(t *testing.T) {
	logger := logging.New("error")

	if _, ok := setupEmailSender(&appconfig.Config{}, nil, logger).(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender by default")
	}
	if _, ok := setupEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, nil, logger).(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender without a SendGrid key")
	}
	sg := setupEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "key", SendGridFromEmail: "a@example.com"}, nil, logger)
	if _, ok := sg.(*notify.SendGridSender); !ok {
		t.Fatalf("expected SendGrid sender, got %T", sg)
	}
	ses := setupEmailSender(&appconfig.Config{EmailProvider: "ses", SESFromEmail: "a@example.com"}, &aws.Config{Region: "ap-south-1"}, logger)
	if _, ok := ses.(*notify.SESSender); !ok {
		t.Fatalf("expected SES sender, got %T", ses)
	}
}
