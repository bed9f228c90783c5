package model

import "encoding/json"

type DispatchStatus string

const (
	DispatchSuccess     DispatchStatus = "success"
	DispatchPartial     DispatchStatus = "partial"
	DispatchNoCompanies DispatchStatus = "no_companies"
	DispatchError       DispatchStatus = "error"
)

func (s DispatchStatus) String() string { return string(s) }

// DispatchReport summarizes one cron dispatch run. MessageIDs has one entry per
// batch, nil where the publish failed.
type DispatchReport struct {
	Status            DispatchStatus `json:"status"`
	TotalCompanies    int            `json:"total_companies"`
	TotalBatches      int            `json:"total_batches"`
	SuccessfulBatches int            `json:"successful_batches"`
	FailedBatches     int            `json:"failed_batches"`
	MessageIDs        []*string      `json:"message_ids"`
	Error             string         `json:"error,omitempty"`
}

// MarshalJSON drops per-batch detail from error reports: a failed roster read
// never attempted any batch.
func (r DispatchReport) MarshalJSON() ([]byte, error) {
	if r.Status == DispatchError {
		return json.Marshal(struct {
			Status DispatchStatus `json:"status"`
			Error  string         `json:"error"`
		}{r.Status, r.Error})
	}
	type plain DispatchReport
	return json.Marshal(plain(r))
}

const (
	BatchStatusCompleted = "completed"

	OutcomeSuccess = "success"
	outcomePrefix  = "error: "
)

// ErrorOutcome renders a per-item failure for BatchSyncResult.Results.
func ErrorOutcome(err error) string {
	return outcomePrefix + err.Error()
}

// BatchSyncResult summarizes one batch executor run. Success+Failed == Total.
type BatchSyncResult struct {
	Status   string            `json:"status"`
	Action   Action            `json:"action"`
	Total    int               `json:"total"`
	Success  int               `json:"success"`
	Failed   int               `json:"failed"`
	NotFound int               `json:"not_found"`
	Results  map[string]string `json:"results"`
}
