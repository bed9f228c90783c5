package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DispatchBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_dispatch_batches_total",
			Help: "Roster batches handed to the broker by result",
		},
		[]string{"result"}, // published|failed
	)

	DispatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_dispatch_runs_total",
			Help: "Cron dispatch runs by report status",
		},
		[]string{"status"}, // success|partial|no_companies|error
	)

	ItemsSyncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_items_synced_total",
			Help: "Per-symbol sync outcomes inside batch execution",
		},
		[]string{"outcome"}, // success|not_found|error
	)

	WebhookResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_webhook_responses_total",
			Help: "Push webhook responses by HTTP status code",
		},
		[]string{"code"},
	)

	PushDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stocksync_push_deliveries_total",
			Help: "Push bridge deliveries by result",
		},
		[]string{"result"}, // delivered|dropped|redeliver
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DispatchBatchesTotal,
		DispatchRunsTotal,
		ItemsSyncedTotal,
		WebhookResponsesTotal,
		PushDeliveriesTotal,
	)
}
