package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"campaignd/internal/audit"
	"campaignd/internal/awsutil"
	"campaignd/internal/config"
	"campaignd/internal/dispatch"
	"campaignd/internal/httpapi"
	"campaignd/internal/logging"
	"campaignd/internal/observability"
	"campaignd/internal/providers/emailapi"
	"campaignd/internal/providers/waba"
	sqsqueue "campaignd/internal/queue/sqs"
	"campaignd/internal/store/pg"
	"campaignd/internal/storedata"
	workerrun "campaignd/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	dbStore := pg.New(db)

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := db.Ping(startupCtx); err != nil {
		startupCancel()
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	startupCancel()

	observability.Register(prometheus.DefaultRegisterer)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "messaging",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})
	dispatcher := &dispatch.Dispatcher{
		Email: &emailapi.Client{
			BaseURL:   cfg.EmailBaseURL,
			APIKey:    cfg.EmailAPIKey,
			FromEmail: cfg.EmailFrom,
			HTTP:      &http.Client{Timeout: cfg.ProviderTimeout},
		},
		Messaging: &waba.Client{
			BaseURL: cfg.MessagingBaseURL,
			Token:   cfg.MessagingToken,
			HTTP:    &http.Client{Timeout: cfg.ProviderTimeout},
		},
		Breaker: breaker,
		Timeout: cfg.ProviderTimeout,
	}

	runner := &workerrun.Runner{
		Store:      dbStore,
		Customers:  &storedata.Client{HTTP: &http.Client{Timeout: 30 * time.Second}},
		Dispatcher: dispatcher,
		Audit:      &audit.Sink{},
		MaxRetries: cfg.MaxRetries,
	}

	// health server (liveness + readiness)
	ops := httpapi.New()
	ops.Mux.HandleFunc("/healthz", httpapi.Healthz())
	ops.Mux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
	))
	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(ops.Mux),
	}
	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	runOnce := func(c context.Context, reason string) {
		res, err := runner.RunOnce(c)
		if err != nil {
			slog.Error("worker pass failed", "err", err, "trigger", reason,
				"queue_item_id", res.QueueItemID, "campaign_id", res.CampaignID)
			return
		}
		if res.Claimed {
			slog.Info("worker pass done", "trigger", reason,
				"queue_item_id", res.QueueItemID, "campaign_id", res.CampaignID,
				"matched", res.Matched, "sent", res.Sent, "failed", res.Failed)
		}
	}

	// Two triggers feed the same loop: a fixed tick (the authoritative
	// scheduler) and SQS wake signals that cut the latency between a send
	// being scheduled and its first pass.
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		ticker := time.NewTicker(cfg.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runOnce(ctx, "tick")
			case <-ctx.Done():
				return
			}
		}
	}()

	consumer := &sqsqueue.WakeConsumer{
		SQS:               sqsClient,
		QueueURL:          cfg.WakeQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}
	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker polling wake signals", "queue_url", cfg.WakeQueueURL)
		pollErrCh <- consumer.Poll(ctx, func(c context.Context, sig sqsqueue.WakeSignal) error {
			runOnce(c, "wake")
			return nil
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-tickDone:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for tick loop")
	}
}
