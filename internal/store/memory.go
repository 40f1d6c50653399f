package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	solves     map[string]SolveRecord // id -> record
	order      []string               // solve ids, creation order
	deliveries map[string]*WebhookDelivery
	queue      []string // delivery ids, enqueue order
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		solves:     map[string]SolveRecord{},
		deliveries: map[string]*WebhookDelivery{},
		now:        time.Now,
	}
}

func (m *Memory) CreateSolve(ctx context.Context, rec SolveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	if _, ok := m.solves[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.solves[rec.ID] = rec
	return nil
}

func (m *Memory) FinishSolve(ctx context.Context, rec SolveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.solves[rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.CreatedAt = old.CreatedAt
	if rec.CallbackURL == "" {
		rec.CallbackURL = old.CallbackURL
	}
	if rec.FinishedAt == nil {
		now := m.now().UTC()
		rec.FinishedAt = &now
	}
	m.solves[rec.ID] = rec
	return nil
}

func (m *Memory) GetSolve(ctx context.Context, id string) (SolveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.solves[id]
	if !ok {
		return SolveRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListSolves(ctx context.Context, status, cursor string, limit int) ([]SolveRecord, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	out := []SolveRecord{}
	var next string
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		rec := m.solves[m.order[i]]
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
		next = m.order[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, solveID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{
		ID: id, SolveID: solveID, EventType: eventType, URL: url, Secret: secret,
		Payload: payload, Status: DeliveryPending, NextAttemptAt: m.now(),
	}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if d.due(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := m.now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = m.now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, solveID, status string) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if (solveID == "" || d.SolveID == solveID) && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	return out, nil
}
