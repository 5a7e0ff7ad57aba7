package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sathicare/booking-core/cmd/mainconfig"
	"github.com/sathicare/booking-core/internal/api/router"
	"github.com/sathicare/booking-core/internal/appointments"
	"github.com/sathicare/booking-core/internal/booking"
	appconfig "github.com/sathicare/booking-core/internal/config"
	"github.com/sathicare/booking-core/internal/events"
	httpmiddleware "github.com/sathicare/booking-core/internal/http/middleware"
	"github.com/sathicare/booking-core/internal/notify"
	"github.com/sathicare/booking-core/internal/observability/metrics"
	"github.com/sathicare/booking-core/internal/payments"
	"github.com/sathicare/booking-core/internal/rooms"
	"github.com/sathicare/booking-core/internal/schedule"
	"github.com/sathicare/booking-core/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.ForEnv(cfg.Env, cfg.LogLevel)
	logger.Info("starting booking-core API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.BookingTimezone,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := newRedisClient(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err, "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	metricsHandler, bookingMetrics := setupMetrics()
	loc := cfg.Location()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	profiles := schedule.NewPostgresStore(pool)
	guard := appointments.NewGuard(
		appointments.NewPostgresStore(pool),
		rooms.NewJitsiMinter(cfg.VideoRoomBaseURL),
		bookingMetrics,
		logger,
	)
	gateway := payments.NewRazorpayGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret, bookingMetrics, logger).
		WithBaseURL(cfg.PaymentBaseURL).
		WithDryRun(cfg.PaymentDryRun)
	outbox := events.NewOutboxStore(pool).WithMaxAttempts(cfg.OutboxMaxAttempts)

	orchestrator := booking.NewOrchestrator(booking.Deps{
		Profiles: profiles,
		Guard:    guard,
		Gateway:  gateway,
		Ledger:   payments.NewOrderLedger(redisClient),
		Velocity: payments.NewVelocityChecker(redisClient, payments.VelocityConfig{
			MaxOrdersPerClient: cfg.OrderVelocityMax,
			Window:             cfg.OrderVelocityWindow,
			Enabled:            cfg.OrderVelocityMax > 0,
		}, logger),
		Incidents: outbox,
		Metrics:   bookingMetrics,
		Logger:    logger,
	}, booking.Options{
		Currency:    cfg.PaymentCurrency,
		Location:    loc,
		OrderTTL:    cfg.OrderIntentTTL,
		PublicKeyID: cfg.PaymentKeyID,
	})

	delivery := events.Fanout{
		notify.NewSupportAlerter(setupEmailSender(cfg, awsCfg, logger), events.NewProcessedStore(pool), cfg.SupportEmail, loc, logger),
	}
	if cfg.BookingEventsQueueURL != "" && awsCfg != nil {
		delivery = append(delivery, events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.BookingEventsQueueURL))
	}
	deliverer := events.NewDeliverer(outbox, delivery, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go evictIdleLimiters(ctx, limiter, 10*time.Minute)

	r := router.New(&router.Config{
		Logger:              logger,
		ScheduleHandler:     schedule.NewHandler(profiles, guard, loc, logger),
		AppointmentsHandler: appointments.NewHandler(guard, logger),
		BookingHandler:      booking.NewHandler(orchestrator, cfg.SupportEmail, logger),
		JWTSecret:           cfg.JWTSecret,
		RateLimiter:         limiter,
		MetricsHandler:      metricsHandler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if url == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

func setupEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("SENDGRID_API_KEY missing, falling back to stub email sender")
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("AWS config unavailable, falling back to stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

func evictIdleLimiters(ctx context.Context, limiter *httpmiddleware.RateLimiter, idle time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Evict(now.Add(-idle))
		}
	}
}
