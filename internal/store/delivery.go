package store

import "time"

// WebhookDelivery is a queued continuation POST.
type WebhookDelivery struct {
	ID            string     `json:"id"`
	SolveID       string     `json:"solveId"`
	EventType     string     `json:"eventType"`
	URL           string     `json:"url"`
	Secret        string     `json:"-"`
	Payload       []byte     `json:"-"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"nextAttemptAt"`
	LastError     string     `json:"lastError,omitempty"`
	ResponseCode  int        `json:"responseCode,omitempty"`
	LatencyMs     int        `json:"latencyMs,omitempty"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
}

// due reports whether the delivery should be attempted at now.
func (d *WebhookDelivery) due(now time.Time) bool {
	return (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now)
}
