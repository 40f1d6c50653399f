package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) CreateSolve(ctx context.Context, rec SolveRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO solves (id, op, status, callback_url, created_at) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Op, rec.Status, nullIfEmpty(rec.CallbackURL), rec.CreatedAt)
	return err
}

func (p *Postgres) FinishSolve(ctx context.Context, rec SolveRecord) error {
	finished := time.Now().UTC()
	if rec.FinishedAt != nil {
		finished = *rec.FinishedAt
	}
	res, err := p.db.ExecContext(ctx, `UPDATE solves SET status=$2, error_kind=$3, error_message=$4, state=$5,
        generations=$6, improvements=$7, faults=$8, initial_cost=$9, best_cost=$10, tours=$11, unassigned=$12,
        duration_ms=$13, finished_at=$14 WHERE id=$1`,
		rec.ID, rec.Status, nullIfEmpty(rec.ErrorKind), nullIfEmpty(rec.ErrorMessage), nullIfEmpty(rec.State),
		rec.Generations, rec.Improvements, rec.Faults, rec.InitialCost, rec.BestCost, rec.Tours, rec.Unassigned,
		rec.DurationMs, finished)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const solveColumns = `id, op, status, COALESCE(error_kind,''), COALESCE(error_message,''), COALESCE(state,''),
    generations, improvements, faults, initial_cost, best_cost, tours, unassigned, duration_ms,
    COALESCE(callback_url,''), created_at, finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanSolve(row scanner) (SolveRecord, error) {
	var rec SolveRecord
	var finished sql.NullTime
	err := row.Scan(&rec.ID, &rec.Op, &rec.Status, &rec.ErrorKind, &rec.ErrorMessage, &rec.State,
		&rec.Generations, &rec.Improvements, &rec.Faults, &rec.InitialCost, &rec.BestCost, &rec.Tours, &rec.Unassigned,
		&rec.DurationMs, &rec.CallbackURL, &rec.CreatedAt, &finished)
	if err != nil {
		return rec, err
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return rec, nil
}

func (p *Postgres) GetSolve(ctx context.Context, id string) (SolveRecord, error) {
	rec, err := scanSolve(p.db.QueryRowContext(ctx, `SELECT `+solveColumns+` FROM solves WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	return rec, err
}

// ListSolves pages by (created_at, id); cursor is the id of the last item of the previous page.
func (p *Postgres) ListSolves(ctx context.Context, status, cursor string, limit int) ([]SolveRecord, string, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	q, args := listSolvesQuery(status, cursor, limit)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []SolveRecord{}
	for rows.Next() {
		rec, err := scanSolve(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func listSolvesQuery(status, cursor string, limit int) (string, []any) {
	var where []string
	var args []any
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if cursor != "" {
		args = append(args, cursor)
		where = append(where, fmt.Sprintf("(created_at, id) > (SELECT created_at, id FROM solves WHERE id=$%d)", len(args)))
	}
	q := `SELECT ` + solveColumns + ` FROM solves`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
	return q, args
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, solveID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, solve_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,0,now())`,
		id, solveID, eventType, url, nullIfEmpty(secret), payload, DeliveryPending)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, solve_id, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
        ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SolveID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status=$2, attempts=attempts+1, response_code=$3, latency_ms=$4, delivered_at=now() WHERE id=$1`,
			id, DeliveryDelivered, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status=$2, attempts=attempts+1, response_code=$3, latency_ms=$4, last_error=$5, next_attempt_at=$6 WHERE id=$1`,
		id, DeliveryRetry, responseCode, latencyMs, nullIfEmpty(lastError), next)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status=$2, attempts=attempts+1, response_code=$3, latency_ms=$4, last_error=$5 WHERE id=$1`,
		id, DeliveryFailed, responseCode, latencyMs, nullIfEmpty(lastError))
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, solveID, status string) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, solve_id, event_type, url, status, attempts, next_attempt_at,
        COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), delivered_at
        FROM webhook_deliveries WHERE ($1='' OR solve_id=$1) AND ($2='' OR status=$2) ORDER BY created_at`, solveID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var delivered sql.NullTime
		if err := rows.Scan(&d.ID, &d.SolveID, &d.EventType, &d.URL, &d.Status, &d.Attempts, &d.NextAttemptAt,
			&d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil {
			return nil, err
		}
		if delivered.Valid {
			d.DeliveredAt = &delivered.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// splitStatements splits a schema on ';' terminators, dropping blanks and comment-only chunks.
func splitStatements(sqlText string) []string {
	var out []string
	for _, part := range strings.Split(sqlText, ";") {
		var lines []string
		for _, l := range strings.Split(part, "\n") {
			if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return out
}
