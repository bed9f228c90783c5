package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	FetchProfile(ctx context.Context, symbol string) (*Profile, error)
}

// HTTPProvider calls a profile endpoint of the form GET {base}{path}?symbol=X&apikey=K
// which answers with a JSON array of profiles.
type HTTPProvider struct {
	name        string
	baseURL     string
	profilePath string
	apiKey      string
	client      *http.Client
	br          *MicroBreaker
}

func NewHTTPProvider(
	name, baseURL, profilePath, apiKey string,
	timeoutMs, failThreshold, openForMs int,
) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	if profilePath == "" {
		profilePath = "/profile"
	}

	return &HTTPProvider{
		name:        name,
		baseURL:     baseURL,
		profilePath: profilePath,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:          NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.br.Ready() }
func (p *HTTPProvider) Acquire() bool { return p.br.TryAcquire() }

// FetchProfile returns ErrNotFound when the provider answers with an empty list.
// A not-found answer counts as a healthy call for the breaker.
func (p *HTTPProvider) FetchProfile(ctx context.Context, symbol string) (*Profile, error) {
	prof, err := p.get(ctx, symbol)
	if err != nil && !errors.Is(err, ErrNotFound) {
		p.br.OnFailure()
		return nil, err
	}

	p.br.OnSuccess()

	return prof, err
}

func (p *HTTPProvider) get(ctx context.Context, symbol string) (*Profile, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if p.apiKey != "" {
		q.Set("apikey", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+p.profilePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("provider=%s symbol=%s status=%d", p.name, symbol, res.StatusCode)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var e struct {
			Message string `json:"Error Message"`
		}
		if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
			return nil, fmt.Errorf("provider=%s symbol=%s: %s", p.name, symbol, e.Message)
		}
		return nil, fmt.Errorf("provider=%s symbol=%s: unexpected object response", p.name, symbol)
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("provider=%s symbol=%s decode: %w", p.name, symbol, err)
	}

	if len(profiles) == 0 {
		return nil, ErrNotFound
	}

	return &profiles[0], nil
}
