package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmoiron/sqlx"
)

// CompaniesRepository defines persistence for the companies table. The table is
// both the sync roster and the upsert target; nothing here deletes rows.
type CompaniesRepository interface {
	ListSymbols(ctx context.Context) ([]string, error)
	GetBySymbol(ctx context.Context, symbol string) (*model.Company, error)
	Upsert(ctx context.Context, tx *sqlx.Tx, c model.Company) (*model.Company, error)
}

type CompaniesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCompaniesRepository(db *sqlx.DB) *CompaniesRepositoryImpl {
	return &CompaniesRepositoryImpl{db: db}
}

var _ CompaniesRepository = (*CompaniesRepositoryImpl)(nil)

const companyColumns = `
	id, symbol, company_name, market_cap, currency, exchange_full_name, exchange,
	industry, sector, country, website, description, image, phone, address, city,
	state, zip, ipo_date, created_at, updated_at`

func (r *CompaniesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// ListSymbols reads the full roster in insertion order.
func (r *CompaniesRepositoryImpl) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := r.db.SelectContext(ctx, &symbols, `SELECT symbol FROM companies ORDER BY id`); err != nil {
		return nil, err
	}
	return symbols, nil
}

// GetBySymbol returns nil, nil when the symbol is not stored.
func (r *CompaniesRepositoryImpl) GetBySymbol(ctx context.Context, symbol string) (*model.Company, error) {
	var c model.Company
	err := r.db.GetContext(ctx, &c, `SELECT `+companyColumns+` FROM companies WHERE symbol = ? LIMIT 1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts or replaces the company keyed by symbol and returns the stored row.
// Replaying it with the same input leaves the same end state.
func (r *CompaniesRepositoryImpl) Upsert(ctx context.Context, tx *sqlx.Tx, c model.Company) (*model.Company, error) {
	const q = `
		INSERT INTO companies
		    (symbol, company_name, market_cap, currency, exchange_full_name, exchange,
		     industry, sector, country, website, description, image, phone, address,
		     city, state, zip, ipo_date, created_at, updated_at)
		VALUES
		    (:symbol, :company_name, :market_cap, :currency, :exchange_full_name, :exchange,
		     :industry, :sector, :country, :website, :description, :image, :phone, :address,
		     :city, :state, :zip, :ipo_date, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    company_name       = VALUES(company_name),
		    market_cap         = VALUES(market_cap),
		    currency           = VALUES(currency),
		    exchange_full_name = VALUES(exchange_full_name),
		    exchange           = VALUES(exchange),
		    industry           = VALUES(industry),
		    sector             = VALUES(sector),
		    country            = VALUES(country),
		    website            = VALUES(website),
		    description        = VALUES(description),
		    image              = VALUES(image),
		    phone              = VALUES(phone),
		    address            = VALUES(address),
		    city               = VALUES(city),
		    state              = VALUES(state),
		    zip                = VALUES(zip),
		    ipo_date           = VALUES(ipo_date),
		    updated_at         = NOW()
	`
	var stored model.Company
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, q, c); err != nil {
			return err
		}
		return tx.GetContext(ctx, &stored, `SELECT `+companyColumns+` FROM companies WHERE symbol = ?`, c.Symbol)
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
