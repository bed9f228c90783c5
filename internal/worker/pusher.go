package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/http/middleware"
	"github.com/jmehdipour/stocksync/internal/metrics"
	"github.com/jmehdipour/stocksync/internal/model"
)

// Pusher turns pulled broker messages into at-least-once HTTP push deliveries:
//   - fetches from a Source,
//   - wraps each message in the push envelope,
//   - POSTs it to the webhook and settles it by status: 2xx acks, 400 acks as
//     dropped, anything else is retried and then requeued.
type Pusher struct {
	// Dependencies
	Source Source
	Client *http.Client
	Log    *zap.Logger

	// Behavior
	Endpoint       string
	Token          string
	Subscription   string
	Workers        int           // number of goroutines delivering messages
	InitialBackoff time.Duration // first retry delay after a non-400 failure
	MaxElapsed     time.Duration // give up and requeue after this long
}

func NewPusher(src Source, endpoint, token, subscription string, workers int, timeout, initialBackoff, maxElapsed time.Duration, log *zap.Logger) *Pusher {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Pusher{
		Source:         src,
		Client:         &http.Client{Timeout: timeout},
		Log:            log,
		Endpoint:       endpoint,
		Token:          token,
		Subscription:   subscription,
		Workers:        workers,
		InitialBackoff: initialBackoff,
		MaxElapsed:     maxElapsed,
	}
}

// statusError is a non-2xx webhook answer.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("webhook status %d", e.code) }

// Run starts the processors and blocks until ctx is cancelled or the source closes.
func (p *Pusher) Run(ctx context.Context) error {
	if p.Endpoint == "" {
		return errors.New("pusher: empty endpoint")
	}
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = 5 * time.Minute
	}
	if p.Client == nil {
		p.Client = &http.Client{Timeout: 10 * time.Minute}
	}
	if p.Log == nil {
		p.Log = zap.NewNop()
	}

	msgCh := make(chan Delivery, p.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgCh {
				p.processOne(ctx, d)
			}
		}()
	}
	defer func() {
		close(msgCh)
		wg.Wait()
	}()

	for {
		d, err := p.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSourceClosed) {
				return nil
			}
			p.Log.Warn("pusher: fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		select {
		case msgCh <- d:
		case <-ctx.Done():
			p.settle(d, d.Requeue, "requeue")
			return nil
		}
	}
}

func (p *Pusher) processOne(ctx context.Context, d Delivery) {
	log := p.Log.With(zap.String("message_id", d.ID))

	body, err := p.envelope(d)
	if err != nil {
		log.Error("pusher: envelope encode failed", zap.Error(err))
		metrics.PushDeliveriesTotal.WithLabelValues("dropped").Inc()
		p.settle(d, d.Ack, "ack")
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff

	code, err := backoff.Retry(ctx, func() (int, error) {
		code, err := p.post(ctx, body)
		if err != nil {
			return 0, err
		}
		if code/100 == 2 {
			return code, nil
		}
		if code == http.StatusBadRequest {
			return code, backoff.Permanent(&statusError{code: code})
		}
		return code, &statusError{code: code}
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("pusher: delivery failed, retrying", zap.Error(err), zap.Duration("in", next))
		}),
	)

	var se *statusError
	switch {
	case err == nil:
		metrics.PushDeliveriesTotal.WithLabelValues("delivered").Inc()
		log.Debug("pusher: delivered", zap.Int("status", code))
		p.settle(d, d.Ack, "ack")
	case errors.As(err, &se) && se.code == http.StatusBadRequest:
		metrics.PushDeliveriesTotal.WithLabelValues("dropped").Inc()
		log.Warn("pusher: rejected by webhook, dropping", zap.Int("status", se.code))
		p.settle(d, d.Ack, "ack")
	default:
		metrics.PushDeliveriesTotal.WithLabelValues("redeliver").Inc()
		log.Error("pusher: giving up for now, requeueing", zap.Error(err))
		p.settle(d, d.Requeue, "requeue")
	}
}

// settle uses its own deadline; the run context may already be cancelled.
func (p *Pusher) settle(d Delivery, fn func(context.Context) error, op string) {
	if fn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		p.Log.Error("pusher: settle failed", zap.String("op", op), zap.String("message_id", d.ID), zap.Error(err))
	}
}

func (p *Pusher) envelope(d Delivery) ([]byte, error) {
	data := base64.StdEncoding.EncodeToString(d.Body)
	msg := &model.PushMessage{
		Data:       &data,
		MessageID:  d.ID,
		Attributes: d.Attributes,
	}
	if !d.PublishTime.IsZero() {
		t := d.PublishTime.UTC()
		msg.PublishTime = &t
	}
	return json.Marshal(model.PushEnvelope{Message: msg, Subscription: p.Subscription})
}

func (p *Pusher) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.Token != "" {
		req.Header.Set(middleware.PushTokenHeader, p.Token)
	}

	res, err := p.Client.Do(req)
	if err != nil {
		return 0, err
	}

	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode, nil
}
