package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vrpengine/internal/progress"
	"vrpengine/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	pingEvery = 20 * time.Second
	readWait  = 60 * time.Second
	writeWait = 5 * time.Second
	readLimit = 1 << 10
)

// ProgressHandler handles GET /v1/solves/{id}/progress. It streams progress events as
// JSON text frames and closes after the solve.finished event.
func (s *Server) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Subscribe before reading the record so the final event cannot slip between them.
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	_, active := s.Engine.Lookup(id)
	rec, err := s.Store.GetSolve(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound) && !active:
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown solve "+id, r.URL.Path)
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), r.URL.Path)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	finish := func(rec store.SolveRecord) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(finishedEvent(rec))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	if err == nil && rec.Status != store.StatusRunning {
		finish(rec)
		return
	}

	// Read loop: only control frames are expected; it ends when the client goes away.
	gone := make(chan struct{})
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(readWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			// A dropped final event would otherwise keep the stream open forever.
			if rec, err := s.Store.GetSolve(r.Context(), id); err == nil && rec.Status != store.StatusRunning {
				finish(rec)
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Type == progress.TypeFinished {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}

func finishedEvent(rec store.SolveRecord) progress.Event {
	return progress.Event{
		Type:       progress.TypeFinished,
		SolveID:    rec.ID,
		Generation: rec.Generations,
		BestCost:   rec.BestCost,
		State:      rec.Status,
	}
}
