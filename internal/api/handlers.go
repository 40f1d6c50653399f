package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vrpengine/internal/boundary"
	"vrpengine/internal/buildinfo"
	"vrpengine/internal/store"
)

// decodeBody reads a JSON request body into v and answers the request on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBodyError(w, r, err)
		return false
	}
	return true
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Request Too Large", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
}

// RoutingLocationsHandler handles POST /v1/routing-locations. The body is the problem document.
func (s *Server) RoutingLocationsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}
	call := s.Engine.GetRoutingLocations(string(body), nil, nil)
	s.respond(w, r, call)
}

// ConvertHandler handles POST /v1/convert
func (s *Server) ConvertHandler(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateConvertRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid convert request", err.Error(), r.URL.Path)
		return
	}
	call := s.Engine.ConvertToPragmatic(req.Format, req.Inputs, nil, nil)
	s.respond(w, r, call)
}

// SolveHandler handles POST /v1/solve. Without callbackUrl the request waits for the
// solution; with it the solve continues in the background and its continuation is
// delivered as a signed webhook.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	matrices := make([]string, len(req.Matrices))
	for i, m := range req.Matrices {
		matrices[i] = string(m)
	}
	sr := boundary.SolveRequest{
		ID:          uuid.NewString(),
		Problem:     string(req.Problem),
		Matrices:    matrices,
		Config:      configString(req.Config),
		GeoJSON:     req.GeoJSON,
		CallbackURL: req.CallbackURL,
	}
	w.Header().Set("X-Solve-Id", sr.ID)

	if req.CallbackURL == "" {
		s.respond(w, r, s.Engine.Solve(sr, nil, nil))
		return
	}

	log := s.Log.WithField("solve_id", sr.ID)
	s.Engine.Solve(sr,
		func(payload string) {
			if _, err := s.Pub.Succeeded(context.Background(), sr.ID, sr.CallbackURL, []byte(payload)); err != nil {
				log.WithError(err).Error("cannot queue success webhook")
			}
		},
		func(payload string) {
			if _, err := s.Pub.Failed(context.Background(), sr.ID, sr.CallbackURL, []byte(payload)); err != nil {
				log.WithError(err).Error("cannot queue failure webhook")
			}
		},
	)
	w.Header().Set("Location", "/v1/solves/"+sr.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"solveId": sr.ID, "status": store.StatusRunning})
}

// respond waits for call and writes its result. A client that goes away cancels the call.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, call *boundary.Call) {
	payload, err := call.Future().Await(r.Context())
	if r.Context().Err() != nil {
		call.Cancel()
		return
	}
	if err != nil {
		writeEngineError(w, err, r.URL.Path)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

type solveStatus struct {
	store.SolveRecord
	Active bool `json:"active"`
}

// SolveStatusHandler handles GET /v1/solves/{id}
func (s *Server) SolveStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.Store.GetSolve(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown solve "+id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), r.URL.Path)
		return
	}
	_, active := s.Engine.Lookup(id)
	writeJSON(w, http.StatusOK, solveStatus{SolveRecord: rec, Active: active})
}

// CancelSolveHandler handles DELETE /v1/solves/{id}. Cancellation is cooperative: a solve
// that already has a solution still finishes with the best one found.
func (s *Server) CancelSolveHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if call, ok := s.Engine.Lookup(id); ok {
		call.Cancel()
		writeJSON(w, http.StatusAccepted, map[string]string{"solveId": id, "status": "cancelling"})
		return
	}
	rec, err := s.Store.GetSolve(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown solve "+id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusConflict, "Not Running", "solve already "+rec.Status, r.URL.Path)
}

// ListSolvesHandler handles GET /v1/admin/solves
func (s *Server) ListSolvesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListSolves(r.Context(), q.Get("status"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List solves failed", err.Error(), r.URL.Path)
		return
	}
	if items == nil {
		items = []store.SolveRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveriesHandler handles GET /v1/admin/solves/{id}/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListWebhookDeliveries(r.Context(), r.PathValue("id"), r.URL.Query().Get("status"))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	if items == nil {
		items = []store.WebhookDelivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// VersionHandler handles GET /v1/version
func (s *Server) VersionHandler(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{"abiVersion": buildinfo.ABIVersion}
	for k, v := range buildinfo.Info() {
		info[k] = v
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store: "+err.Error(), r.URL.Path)
			return
		}
	}
	for name, check := range s.Checks {
		if err := check(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", name+": "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
