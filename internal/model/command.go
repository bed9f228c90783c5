package model

// Action tags the command carried by a dispatch message.
type Action string

const (
	ActionSyncCompanyBatch Action = "sync_company_batch"
)

func (a Action) String() string { return string(a) }

// DispatchMessage is the payload published to the broker, one per roster batch.
type DispatchMessage struct {
	Action  Action   `json:"action"`
	Symbols []string `json:"symbols"`
}
