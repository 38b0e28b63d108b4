package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"campaignd/internal/awsutil"
	"campaignd/internal/config"
	"campaignd/internal/domain"
	"campaignd/internal/httpapi"
	"campaignd/internal/logging"
	"campaignd/internal/observability"
	sqsqueue "campaignd/internal/queue/sqs"
	"campaignd/internal/store"
	"campaignd/internal/store/pg"
	"campaignd/internal/util"
)

func main() {
	cfg := config.LoadWebhookProcessor()
	logging.Init("webhook-processor", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("webhook-processor db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("webhook-processor sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	ops := httpapi.New()
	ops.Mux.HandleFunc("/healthz", httpapi.Healthz())
	ops.Mux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
	))
	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: httpapi.Logging(ops.Mux)}
	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	consumer := &sqsqueue.DeliveryEventConsumer{
		SQS:               sqsClient,
		QueueURL:          cfg.DeliveryEventsQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor polling", "queue_url", cfg.DeliveryEventsQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.Concurrency, func(c context.Context, ev sqsqueue.DeliveryEvent) error {
			return applyReceipt(c, dbStore, ev)
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("webhook-processor poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("webhook-processor health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook-processor shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
}

// applyReceipt maps a provider status onto the campaign log. Statuses other
// than delivered/failed (e.g. "sent", "read") carry no state change here.
func applyReceipt(ctx context.Context, dbStore *pg.Store, ev sqsqueue.DeliveryEvent) error {
	var status domain.LogStatus
	switch strings.ToLower(ev.Status) {
	case "delivered":
		status = domain.LogDelivered
	case "failed", "undelivered":
		status = domain.LogFailed
	default:
		return nil
	}

	found, err := dbStore.ApplyDeliveryReceipt(ctx, store.DeliveryReceiptUpdate{
		ProviderMsgID: ev.ProviderMsgID,
		Status:        status,
		Now:           util.NowUTC(),
	})
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("delivery receipt for unknown message", "provider_msg_id", ev.ProviderMsgID, "status", ev.Status)
	}
	return nil
}
