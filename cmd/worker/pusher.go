package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/config"
	"github.com/jmehdipour/stocksync/internal/kafka"
	"github.com/jmehdipour/stocksync/internal/logger"
	"github.com/jmehdipour/stocksync/internal/metrics"
	"github.com/jmehdipour/stocksync/internal/worker"
)

var metricsAddr string

// NewWorkerCmd returns the "worker" command group.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}

	pusher := &cobra.Command{
		Use:   "pusher",
		Short: "Consume the company sync topic and push each message to the webhook",
		RunE:  runPusher,
	}
	pusher.Flags().StringVar(&metricsAddr, "metrics-addr", ":9101", "address for /metrics (empty disables)")
	cmd.AddCommand(pusher)

	return cmd
}

func runPusher(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level).Named("pusher")
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) broker source
	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	// 3) pusher
	p := worker.NewPusher(src, cfg.Push.Endpoint, cfg.Push.Token, cfg.Broker.Subscription,
		cfg.Push.Workers, cfg.Push.Timeout, cfg.Push.InitialBackoff, cfg.Push.MaxElapsed, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	log.Info("pusher started",
		zap.String("driver", cfg.Broker.Driver),
		zap.String("topic", cfg.Broker.CompanySyncTopic),
		zap.String("endpoint", cfg.Push.Endpoint),
	)
	return p.Run(ctx)
}

func newSource(cfg config.Config) (worker.Source, error) {
	switch strings.ToLower(cfg.Broker.Driver) {
	case "kafka":
		return worker.NewKafkaSource(kafka.ConfigFor(cfg.Kafka, cfg.Broker.CompanySyncTopic)), nil
	case "rabbitmq":
		src, err := worker.NewRabbitSource(cfg.RabbitMQ, cfg.Broker.CompanySyncTopic)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("broker driver %q has no standalone pusher; use serve", cfg.Broker.Driver)
	}
}
