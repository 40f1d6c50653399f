package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"vrpengine/internal/store"
)

// Continuation event types.
const (
	EventSucceeded = "solve.succeeded"
	EventFailed    = "solve.failed"
)

// Envelope is the body POSTed to a callback URL. Exactly one of Solution and Error is set.
type Envelope struct {
	SolveID  string          `json:"solveId"`
	Type     string          `json:"type"`
	TS       string          `json:"ts"`
	Solution json.RawMessage `json:"solution,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
}

// Publisher queues continuation webhooks; a Worker delivers them.
type Publisher struct {
	Store  store.Store
	Secret string
	Now    func() time.Time
}

func NewPublisher(s store.Store, secret string) *Publisher {
	return &Publisher{Store: s, Secret: secret, Now: time.Now}
}

// Succeeded queues the solution JSON for url.
func (p *Publisher) Succeeded(ctx context.Context, solveID, url string, solution []byte) (string, error) {
	return p.enqueue(ctx, Envelope{SolveID: solveID, Type: EventSucceeded, Solution: solution}, url)
}

// Failed queues the error payload for url.
func (p *Publisher) Failed(ctx context.Context, solveID, url string, errPayload []byte) (string, error) {
	return p.enqueue(ctx, Envelope{SolveID: solveID, Type: EventFailed, Error: errPayload}, url)
}

func (p *Publisher) enqueue(ctx context.Context, env Envelope, url string) (string, error) {
	env.TS = p.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, env.SolveID, env.Type, url, p.Secret, body)
}
