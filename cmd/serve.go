package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/db"
	httpSrv "github.com/jmehdipour/stocksync/internal/http"
	"github.com/jmehdipour/stocksync/internal/logger"
	"github.com/jmehdipour/stocksync/internal/provider"
	"github.com/jmehdipour/stocksync/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (scheduler trigger + push webhook)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Log
		defer func() { _ = log.Sync() }()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		pub, err := broker.New(cfg)
		if err != nil {
			return fmt.Errorf("broker: %w", err)
		}
		defer func() { _ = pub.Close() }()

		pool, err := provider.NewPoolFromConfig(cfg.Providers)
		if err != nil {
			return fmt.Errorf("providers: %w", err)
		}

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, pub, pool)

		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		// the in-memory broker has no external consumer; push from this process
		if mem, ok := pub.(*broker.MemoryPublisher); ok {
			src := worker.NewMemorySource(mem, cfg.Broker.CompanySyncTopic)
			pusher := worker.NewPusher(src, cfg.Push.Endpoint, cfg.Push.Token, cfg.Broker.Subscription,
				cfg.Push.Workers, cfg.Push.Timeout, cfg.Push.InitialBackoff, cfg.Push.MaxElapsed, log.Named("pusher"))
			go func() {
				if err := pusher.Run(ctx); err != nil {
					log.Error("in-process pusher stopped", zap.Error(err))
				}
			}()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
