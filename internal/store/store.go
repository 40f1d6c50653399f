// Package store persists solve telemetry and continuation webhook deliveries.
// Solved routes are never stored.
package store

import (
	"context"
	"errors"
	"time"
)

// Solve statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// SolveRecord is the telemetry of one boundary call.
type SolveRecord struct {
	ID           string     `json:"id"`
	Op           string     `json:"op"`
	Status       string     `json:"status"`
	ErrorKind    string     `json:"errorKind,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	State        string     `json:"state,omitempty"`
	Generations  int        `json:"generations"`
	Improvements int        `json:"improvements"`
	Faults       int        `json:"faults"`
	InitialCost  float64    `json:"initialCost"`
	BestCost     float64    `json:"bestCost"`
	Tours        int        `json:"tours"`
	Unassigned   int        `json:"unassigned"`
	DurationMs   int64      `json:"durationMs"`
	CallbackURL  string     `json:"callbackUrl,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Store is the persistence interface used by the boundary and the API server.
type Store interface {
	// Solve telemetry
	CreateSolve(ctx context.Context, rec SolveRecord) error
	FinishSolve(ctx context.Context, rec SolveRecord) error
	GetSolve(ctx context.Context, id string) (SolveRecord, error)
	ListSolves(ctx context.Context, status, cursor string, limit int) ([]SolveRecord, string, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, solveID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, solveID, status string) ([]WebhookDelivery, error)
}

var ErrNotFound = errors.New("not found")

const defaultLimit = 100
