package companysync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/provider"
	"github.com/jmoiron/sqlx"
)

var ErrEmptySymbol = errors.New("empty symbol")

// ProfileFetcher is satisfied by *provider.Pool.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, symbol string) (*provider.Profile, error)
}

// CompanyWriter is satisfied by repository.CompaniesRepository.
type CompanyWriter interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, c model.Company) (*model.Company, error)
}

// Service refreshes one company from the upstream provider into storage.
type Service struct {
	profiles  ProfileFetcher
	companies CompanyWriter
}

func New(profiles ProfileFetcher, companies CompanyWriter) *Service {
	return &Service{profiles: profiles, companies: companies}
}

// UpsertCompany fetches the profile for symbol and upserts it keyed by symbol.
// It returns (nil, nil) when the provider has no data for the symbol.
func (s *Service) UpsertCompany(ctx context.Context, symbol string) (*model.Company, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	prof, err := s.profiles.FetchProfile(ctx, symbol)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", symbol, err)
	}

	c := prof.Company()
	if c.Symbol == "" {
		c.Symbol = symbol
	}

	stored, err := s.companies.Upsert(ctx, nil, c)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", symbol, err)
	}
	return stored, nil
}

// SyncItem adapts UpsertCompany to the per-item outcome used by batch execution.
func (s *Service) SyncItem(ctx context.Context, symbol string) (model.SyncOutcome, error) {
	c, err := s.UpsertCompany(ctx, symbol)
	switch {
	case err != nil:
		return model.SyncOutcomeError, err
	case c == nil:
		return model.SyncOutcomeNotFound, nil
	default:
		return model.SyncOutcomeSuccess, nil
	}
}
