package provider

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmehdipour/stocksync/internal/config"
)

var (
	ErrNotFound  = errors.New("symbol not found at provider")
	ErrNoHealthy = fmt.Errorf("no healthy providers")
	ErrNoAcquire = fmt.Errorf("provider not acquired")
)

// Pool spreads profile lookups across ready providers in round-robin order.
type Pool struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewPool(provs []Provider, maxAttempts int) *Pool {
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &Pool{providers: provs, maxAttempts: maxAttempts}
}

// NewPoolFromConfig builds HTTP providers for every enabled entry. The pool
// retries up to the largest max_attempts configured.
func NewPoolFromConfig(cfgs []config.ProviderConfig) (*Pool, error) {
	var (
		provs       []Provider
		maxAttempts int
	)
	for _, pc := range cfgs {
		if !pc.Enabled {
			continue
		}
		provs = append(provs, NewHTTPProvider(
			pc.Name, pc.BaseURL, pc.ProfilePath, pc.APIKey,
			pc.TimeoutMs, pc.Breaker.FailThreshold, pc.Breaker.OpenForMs,
		))
		if pc.MaxAttempts > maxAttempts {
			maxAttempts = pc.MaxAttempts
		}
	}

	if len(provs) == 0 {
		return nil, fmt.Errorf("no enabled providers configured")
	}

	return NewPool(provs, maxAttempts), nil
}

func (p *Pool) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(p.providers))
	for _, pr := range p.providers {
		if pr.Ready() {
			healthy = append(healthy, pr)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := p.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (p *Pool) tryOnce(ctx context.Context, symbol string) (*Profile, error) {
	pr, err := p.selectProvider()
	if err != nil {
		return nil, err
	}

	if !pr.Acquire() {
		return nil, ErrNoAcquire
	}

	return pr.FetchProfile(ctx, symbol)
}

// FetchProfile returns ErrNotFound without retrying; other failures are retried
// up to maxAttempts and the last error is returned.
func (p *Pool) FetchProfile(ctx context.Context, symbol string) (*Profile, error) {
	var last error
	for i := 0; i < p.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prof, err := p.tryOnce(ctx, symbol)
		if err == nil {
			return prof, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		last = err
	}

	if last == nil {
		last = fmt.Errorf("fetch profile failed")
	}

	return nil, last
}
