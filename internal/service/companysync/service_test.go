package companysync

import (
	"context"
	"errors"
	"testing"

	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/provider"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles struct {
	profiles map[string]provider.Profile
	err      error
}

func (f fakeProfiles) FetchProfile(_ context.Context, symbol string) (*provider.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[symbol]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &p, nil
}

type fakeCompanies struct {
	rows map[string]model.Company
	err  error
}

func (f *fakeCompanies) Upsert(_ context.Context, _ *sqlx.Tx, c model.Company) (*model.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.rows == nil {
		f.rows = map[string]model.Company{}
	}
	f.rows[c.Symbol] = c
	return &c, nil
}

func TestUpsertCompanyStoresMappedProfile(t *testing.T) {
	store := &fakeCompanies{}
	svc := New(fakeProfiles{profiles: map[string]provider.Profile{
		"AAPL": {Symbol: "AAPL", CompanyName: "Apple Inc.", Currency: "USD"},
	}}, store)

	c, err := svc.UpsertCompany(context.Background(), " aapl ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Apple Inc.", store.rows["AAPL"].CompanyName)
}

func TestUpsertCompanyNotFound(t *testing.T) {
	store := &fakeCompanies{}
	svc := New(fakeProfiles{}, store)

	c, err := svc.UpsertCompany(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, store.rows)

	outcome, err := svc.SyncItem(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Equal(t, model.SyncOutcomeNotFound, outcome)
}

func TestUpsertCompanyProviderFailure(t *testing.T) {
	svc := New(fakeProfiles{err: provider.ErrNoHealthy}, &fakeCompanies{})

	_, err := svc.UpsertCompany(context.Background(), "AAPL")
	require.ErrorIs(t, err, provider.ErrNoHealthy)

	outcome, err := svc.SyncItem(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, model.SyncOutcomeError, outcome)
}

func TestUpsertCompanyStorageFailure(t *testing.T) {
	boom := errors.New("deadlock")
	svc := New(fakeProfiles{profiles: map[string]provider.Profile{"IBM": {Symbol: "IBM"}}}, &fakeCompanies{err: boom})

	_, err := svc.UpsertCompany(context.Background(), "IBM")
	require.ErrorIs(t, err, boom)
}

func TestUpsertCompanyEmptySymbol(t *testing.T) {
	svc := New(fakeProfiles{}, &fakeCompanies{})
	_, err := svc.UpsertCompany(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptySymbol)
}

func TestSyncItemIsIdempotent(t *testing.T) {
	store := &fakeCompanies{}
	svc := New(fakeProfiles{profiles: map[string]provider.Profile{"MSFT": {Symbol: "MSFT", CompanyName: "Microsoft"}}}, store)

	for i := 0; i < 2; i++ {
		outcome, err := svc.SyncItem(context.Background(), "MSFT")
		require.NoError(t, err)
		assert.Equal(t, model.SyncOutcomeSuccess, outcome)
	}
	assert.Len(t, store.rows, 1)
}
