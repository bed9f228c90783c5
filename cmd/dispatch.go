package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/db"
	"github.com/jmehdipour/stocksync/internal/logger"
	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/repository"
	"github.com/jmehdipour/stocksync/internal/service/dispatch"
)

var dispatchBatchSize int

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Publish the whole company roster as sync batches once (cron entrypoint)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Log.Sync() }()

		if cmd.Flags().Changed("batch-size") && dispatchBatchSize <= 0 {
			return fmt.Errorf("--batch-size must be positive")
		}

		if err := checkDispatchDriver(cfg.Broker.Driver); err != nil {
			return err
		}

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		pub, err := broker.New(cfg)
		if err != nil {
			return fmt.Errorf("broker: %w", err)
		}
		defer func() { _ = pub.Close() }()

		d := dispatch.New(repository.NewCompaniesRepository(mysqlDB), pub,
			cfg.Broker.CompanySyncTopic, cfg.Dispatch.BatchSize, logger.Log.Named("dispatch"))
		report := d.Dispatch(context.Background(), dispatchBatchSize)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}

		if report.Status == model.DispatchError {
			return fmt.Errorf("dispatch failed: %s", report.Error)
		}
		return nil
	},
}

// checkDispatchDriver rejects brokers that do not outlive this process.
func checkDispatchDriver(driver string) error {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return fmt.Errorf("broker driver %q is in-process only; use the scheduler endpoint of serve", driver)
	}
	return nil
}

func init() {
	dispatchCmd.Flags().IntVar(&dispatchBatchSize, "batch-size", 0, "symbols per batch (default: dispatch.batch_size)")
}
