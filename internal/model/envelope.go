package model

import "time"

// PushEnvelope is the body a push subscription POSTs to the webhook.
// Data carries the base64-encoded DispatchMessage JSON.
type PushEnvelope struct {
	Message      *PushMessage `json:"message"`
	Subscription string       `json:"subscription,omitempty"`
}

type PushMessage struct {
	Data        *string           `json:"data"`
	MessageID   string            `json:"messageId,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	PublishTime *time.Time        `json:"publishTime,omitempty"`
}
