// Command progress_client is a demo client of the API server: it submits an async solve,
// streams its progress over the websocket and prints the signed callback it receives.
//
//	go run ./scripts/progress_client problem.json
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"vrpengine/internal/progress"
	"vrpengine/internal/webhooks"
)

func main() {
	log := logrus.New()
	if len(os.Args) != 2 {
		log.Fatal("usage: progress_client problem.json")
	}
	problem, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	secret := os.Getenv("WEBHOOK_SECRET")

	// Callback receiver
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	callbacks := make(chan webhooks.Envelope, 1)
	go func() {
		_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if secret != "" && !webhooks.VerifyHMAC(secret, body, r.Header.Get(webhooks.HeaderSignature)) {
				log.Warn("callback signature mismatch")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var env webhooks.Envelope
			_ = json.Unmarshal(body, &env)
			w.WriteHeader(http.StatusNoContent)
			callbacks <- env
		}))
	}()

	req, _ := json.Marshal(map[string]any{
		"problem":     json.RawMessage(problem),
		"config":      map[string]any{"max_time": 5},
		"callbackUrl": fmt.Sprintf("http://%s/callback", ln.Addr()),
	})
	resp, err := http.Post(fmt.Sprintf("http://localhost:%s/v1/solve", port), "application/json", bytes.NewReader(req))
	if err != nil {
		log.Fatal(err)
	}
	var accepted struct {
		SolveID string `json:"solveId"`
	}
	err = json.NewDecoder(resp.Body).Decode(&accepted)
	_ = resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusAccepted {
		log.Fatalf("solve not accepted: status %d, %v", resp.StatusCode, err)
	}
	log.WithField("solve_id", accepted.SolveID).Info("solve accepted")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solves/" + accepted.SolveID + "/progress"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	for {
		var evt progress.Event
		if err := c.ReadJSON(&evt); err != nil {
			log.WithError(err).Info("stream closed")
			break
		}
		log.WithFields(logrus.Fields{"type": evt.Type, "generation": evt.Generation, "best": evt.BestCost}).Info("progress")
		if evt.Type == progress.TypeFinished {
			break
		}
	}

	select {
	case env := <-callbacks:
		log.WithFields(logrus.Fields{"type": env.Type, "bytes": len(env.Solution) + len(env.Error)}).Info("callback received")
	case <-time.After(10 * time.Second):
		log.Warn("no callback within 10s")
	}
}
