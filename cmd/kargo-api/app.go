package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/DenizBir/KargoGate/internal/api/cbs_api"
	"github.com/DenizBir/KargoGate/internal/api/orders_api"
	"github.com/DenizBir/KargoGate/internal/api/returns_api"
	"github.com/DenizBir/KargoGate/internal/api/settings_api"
	"github.com/DenizBir/KargoGate/internal/api/shipments_api"
	"github.com/DenizBir/KargoGate/internal/api/webhook_api"
	"github.com/DenizBir/KargoGate/internal/broker/messages"
	"github.com/DenizBir/KargoGate/internal/metrics"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type kargoAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type apiDeps struct {
	webhook  *webhook_api.Handler
	cbs      *cbs_api.Handler
	ship     *shipments_api.Handler
	settings *settings_api.Handler
	returns  *returns_api.Handler
	orders   *orders_api.Handler

	// svc applies worker status messages from kafka
	svc *shipments.Service
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runKargoAPI(ctx context.Context, opts kargoAPIOpts, deps apiDeps, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	metrics.Register()

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))

	r.Post("/webhooks/orders-create", deps.webhook.HandleOrdersCreate)

	r.Get("/cities", deps.cbs.HandleCities)
	r.Get("/districts/{cityCode}", deps.cbs.HandleDistricts)

	r.Post("/shipments", deps.ship.HandleCreate)
	r.Get("/shipments", deps.ship.HandleList)
	r.Get("/shipments/{orderId}", deps.ship.HandleGet)

	r.Post("/returns/ship", deps.returns.HandleShip)
	r.Post("/returns/check", deps.returns.HandleCheck)
	r.Get("/returns/{returnId}", deps.returns.HandleGet)

	r.Post("/settings/update-api", deps.settings.HandleUpdate)
	r.Get("/settings/{shop}", deps.settings.HandleGet)

	r.Get("/shopify/orders", deps.orders.HandleList)

	if consumer != nil {
		go consumeStatusUpdates(ctx, consumer, deps.svc, opts.topic, opts.consumerGroup)
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

// statusUpdateHandler applies worker status messages. A message that does
// not decode is logged and skipped (returning nil commits it), so one bad
// payload cannot wedge the whole topic; apply failures stay uncommitted.
func statusUpdateHandler(ctx context.Context, svc *shipments.Service) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var m messages.ShipmentStatusChanged
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Error("skip malformed status message", "error", err.Error())
			return nil
		}
		if err := svc.ApplyKafkaUpdate(ctx, m); err != nil {
			slog.Error("apply status message", "order_id", m.OrderID, "error", err.Error())
			return err
		}
		return nil
	}
}

func consumeStatusUpdates(ctx context.Context, consumer kafkaConsumer, svc *shipments.Service, topic, group string) {
	slog.Info("kafka consumer started", "topic", topic, "group", group)
	for {
		err := consumer.Consume(ctx, statusUpdateHandler(ctx, svc))
		if ctx.Err() != nil {
			return
		}
		slog.Error("kafka consumer stopped, restarting", "error", err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}
