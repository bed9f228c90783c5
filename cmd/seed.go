package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/stocksync/internal/db"
)

var defaultRoster = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK-B",
	"JPM", "V", "UNH", "XOM", "JNJ", "WMT", "PG", "MA", "HD", "KO",
}

var seedCmd = &cobra.Command{
	Use:   "seed [symbols...]",
	Short: "Seed the companies roster (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		symbols := args
		if len(symbols) == 0 {
			symbols = defaultRoster
		}

		log.Printf(">> Seeding %d roster symbols...", len(symbols))

		n, err := seedRoster(sqlDB, symbols)
		if err != nil {
			return err
		}

		log.Printf(">> Seed completed (%d new)", n)
		return nil
	},
}

// seedRoster inserts placeholder rows keyed by symbol; existing rows are kept.
func seedRoster(dbx *sqlx.DB, symbols []string) (int64, error) {
	const q = `
INSERT IGNORE INTO companies
    (symbol, company_name, created_at, updated_at)
VALUES
    (?, ?, NOW(), NOW())
`
	tx, err := dbx.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var inserted int64
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		res, err := tx.Exec(q, s, s)
		if err != nil {
			return 0, fmt.Errorf("insert company %q: %w", s, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit roster: %w", err)
	}
	return inserted, nil
}
