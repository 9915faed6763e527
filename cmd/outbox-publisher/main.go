package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/kafka"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

func main() {
	proc, err := bootstrap.Start(context.Background(), "outbox-publisher")
	if err != nil {
		proc.Fatal(context.Background(), "failed to start outbox publisher", err)
	}
	defer proc.Close(context.Background())
	cfg, logg := proc.Config, proc.Logger

	sink, err := buildSink(context.Background(), proc)
	if err != nil {
		proc.Fatal(context.Background(), "failed to bootstrap event sink", err)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.Events)
	if err != nil {
		proc.Fatal(context.Background(), "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         proc.DB,
		Sink:       sink,
		Repository: outbox.NewRepository(proc.DB.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewStoreMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		proc.Fatal(context.Background(), "failed to create outbox publisher", err)
	}

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"sink":        sink.Name(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// buildSink picks the broker named by the events config and registers its
// shutdown with the process.
func buildSink(ctx context.Context, proc *bootstrap.Process) (eventSink, error) {
	cfg := proc.Config
	if cfg.Events.UsesKafka() {
		producer, err := kafka.NewProducer(cfg.Kafka, proc.Logger)
		if err != nil {
			return nil, err
		}
		proc.OnClose("kafka producer", producer.Close)
		return newKafkaSink(producer), nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Events, cfg.PubSub, proc.Logger)
	if err != nil {
		return nil, err
	}
	sink := newPubSubSink(client)
	proc.OnClose("pubsub client", func() error {
		sink.Stop()
		return client.Close()
	})
	return sink, nil
}
