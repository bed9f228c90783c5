package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/stocksync/internal/config"
	"github.com/jmehdipour/stocksync/internal/ingest"
	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/provider"
	"github.com/jmehdipour/stocksync/internal/service/batchsync"
	"github.com/jmehdipour/stocksync/internal/service/companysync"
)

type fakeDispatcher struct {
	report    model.DispatchReport
	gotSize   int
	callCount int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, batchSize int) model.DispatchReport {
	f.callCount++
	f.gotSize = batchSize
	return f.report
}

type fakeIngester struct {
	err   error
	panic bool
	calls int
}

func (f *fakeIngester) Handle(context.Context, []byte) (*model.BatchSyncResult, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.BatchSyncResult{Status: model.BatchStatusCompleted}, nil
}

type fakeCompanies struct {
	company *model.Company
	err     error
}

func (f fakeCompanies) UpsertCompany(context.Context, string) (*model.Company, error) {
	return f.company, f.err
}

type fakeResults struct {
	rows      []model.SyncResult
	err       error
	gotSymbol string
	gotLimit  int
}

func (f *fakeResults) InsertBatch(context.Context, []model.SyncResult) error { return nil }

func (f *fakeResults) ListRecent(_ context.Context, symbol string, _ model.SyncOutcome, limit, _ int) ([]model.SyncResult, error) {
	f.gotSymbol, f.gotLimit = symbol, limit
	return f.rows, f.err
}

func serve(t *testing.T, cfg config.Config, d Deps, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	if d.Dispatcher == nil {
		d.Dispatcher = &fakeDispatcher{}
	}
	if d.Ingester == nil {
		d.Ingester = &fakeIngester{}
	}
	if d.Companies == nil {
		d.Companies = fakeCompanies{}
	}
	if d.SyncResults == nil {
		d.SyncResults = &fakeResults{}
	}
	e := newEcho(cfg, d)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSchedulerReturnsReport(t *testing.T) {
	id := "m1"
	d := &fakeDispatcher{report: model.DispatchReport{
		Status: model.DispatchSuccess, TotalCompanies: 1, TotalBatches: 1, SuccessfulBatches: 1,
		MessageIDs: []*string{&id},
	}}

	rec := serve(t, config.Config{}, Deps{Dispatcher: d}, http.MethodPost, "/internal/scheduler/sync-company-weekly?batch_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, d.gotSize)
	assert.JSONEq(t, `{"status":"success","total_companies":1,"total_batches":1,"successful_batches":1,"failed_batches":0,"message_ids":["m1"]}`, rec.Body.String())
}

func TestSchedulerPartialIsOK(t *testing.T) {
	d := &fakeDispatcher{report: model.DispatchReport{Status: model.DispatchPartial, TotalBatches: 2, SuccessfulBatches: 1, FailedBatches: 1}}
	rec := serve(t, config.Config{}, Deps{Dispatcher: d}, http.MethodPost, "/internal/scheduler/sync-company-weekly", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, d.gotSize)
}

func TestSchedulerErrorIs500(t *testing.T) {
	d := &fakeDispatcher{report: model.DispatchReport{Status: model.DispatchError, Error: "db down"}}
	rec := serve(t, config.Config{}, Deps{Dispatcher: d}, http.MethodPost, "/internal/scheduler/sync-company-weekly", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","error":"db down"}`, rec.Body.String())
}

func TestSchedulerBadBatchSize(t *testing.T) {
	for _, v := range []string{"0", "-3", "ten"} {
		d := &fakeDispatcher{}
		rec := serve(t, config.Config{}, Deps{Dispatcher: d}, http.MethodPost, "/internal/scheduler/sync-company-weekly?batch_size="+v, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, v)
		assert.Zero(t, d.callCount)
	}
}

func TestWebhookStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusNoContent},
		{"malformed", fmt.Errorf("%w: bad base64", ingest.ErrMalformedEnvelope), http.StatusBadRequest},
		{"unknown", fmt.Errorf("%w: nope", ingest.ErrUnknownCommand), http.StatusBadRequest},
		{"executor", fmt.Errorf("%w: %w", ingest.ErrExecutorFailure, batchsync.ErrInfrastructure), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, config.Config{}, Deps{Ingester: &fakeIngester{err: tc.err}}, http.MethodPost, "/internal/pubsub-webhook", `{}`)
			assert.Equal(t, tc.code, rec.Code)
			if tc.code != http.StatusNoContent {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestWebhookPanicIs500(t *testing.T) {
	rec := serve(t, config.Config{}, Deps{Ingester: &fakeIngester{panic: true}}, http.MethodPost, "/internal/pubsub-webhook", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookTokenAndBodyLimit(t *testing.T) {
	cfg := config.Config{Push: config.PushConfig{Token: "t0k"}, HTTP: config.HTTPConfig{WebhookLimit: "1K"}}

	in := &fakeIngester{}
	rec := serve(t, cfg, Deps{Ingester: in}, http.MethodPost, "/internal/pubsub-webhook", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, in.calls)

	rec = serve(t, cfg, Deps{Ingester: in}, http.MethodPost, "/internal/pubsub-webhook?token=t0k", `{}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, cfg, Deps{Ingester: in}, http.MethodPost, "/internal/pubsub-webhook?token=t0k", strings.Repeat("x", 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebhookEndToEnd(t *testing.T) {
	items := itemFunc(func(_ context.Context, symbol string) (model.SyncOutcome, error) {
		if symbol == "BAD" {
			return model.SyncOutcomeError, errors.New("provider 503")
		}
		return model.SyncOutcomeSuccess, nil
	})
	h := ingest.NewHandler(batchsync.New(items), nil)

	data := base64.StdEncoding.EncodeToString([]byte(`{"action":"sync_company_batch","symbols":["AAA","BAD"]}`))
	rec := serve(t, config.Config{}, Deps{Ingester: h}, http.MethodPost, "/internal/pubsub-webhook", `{"message":{"data":"`+data+`","messageId":"1"}}`)
	assert.Equal(t, http.StatusNoContent, rec.Code, "per-item failure still acknowledges")

	rec = serve(t, config.Config{}, Deps{Ingester: h}, http.MethodPost, "/internal/pubsub-webhook", `{"message":{"data":"@@@"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanySyncStatuses(t *testing.T) {
	rec := serve(t, config.Config{}, Deps{Companies: fakeCompanies{company: &model.Company{Symbol: "AAPL"}}}, http.MethodPost, "/internal/companies/AAPL/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"AAPL"`)

	rec = serve(t, config.Config{}, Deps{Companies: fakeCompanies{}}, http.MethodPost, "/internal/companies/NOPE/sync", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, config.Config{}, Deps{Companies: fakeCompanies{err: provider.ErrNoHealthy}}, http.MethodPost, "/internal/companies/AAPL/sync", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = serve(t, config.Config{}, Deps{Companies: fakeCompanies{err: companysync.ErrEmptySymbol}}, http.MethodPost, "/internal/companies/%20/sync", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSyncResults(t *testing.T) {
	res := &fakeResults{rows: []model.SyncResult{{MessageID: "m", Symbol: "AAPL", Outcome: model.SyncOutcomeSuccess}}}
	rec := serve(t, config.Config{}, Deps{SyncResults: res}, http.MethodGet, "/internal/sync/results?symbol=aapl&limit=5000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", res.gotSymbol)
	assert.Equal(t, 50, res.gotLimit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = serve(t, config.Config{}, Deps{SyncResults: res}, http.MethodGet, "/internal/sync/results?outcome=weird", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, config.Config{}, Deps{SyncResults: &fakeResults{err: errors.New("ch down")}}, http.MethodGet, "/internal/sync/results", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := serve(t, config.Config{}, Deps{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

type itemFunc func(ctx context.Context, symbol string) (model.SyncOutcome, error)

func (f itemFunc) SyncItem(ctx context.Context, symbol string) (model.SyncOutcome, error) {
	return f(ctx, symbol)
}
