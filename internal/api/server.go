// Package api is the bot's status surface: health, graph snapshots,
// scheduler state, operator interventions, and a live event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/darianrosebrook/minebot/internal/engine"
	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/scheduler"
)

// EngineHandle is the engine surface the API consumes.
type EngineHandle interface {
	HasNode(id string) bool
	Snapshot() []engine.NodeView
	ReadyView() []string
	Status() scheduler.Status
	Cancel(id string) error
	Retry(id string) error
	Invalidate(id string) error
}

var eng EngineHandle

// SetEngine sets the engine handle used by graph and operator endpoints.
func SetEngine(e EngineHandle) {
	eng = e
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "minebot",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

func graphHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if eng == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode([]engine.NodeView{})
		return
	}
	_ = json.NewEncoder(w).Encode(eng.Snapshot())
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if eng == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode([]string{})
		return
	}
	_ = json.NewEncoder(w).Encode(eng.ReadyView())
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if eng == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(scheduler.Status{})
		return
	}
	_ = json.NewEncoder(w).Encode(eng.Status())
}

type OperatorRequest struct {
	TaskID string `json:"task_id"`
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// operatorHandler wraps the shared request decode/validate flow around an
// engine intervention.
func operatorHandler(event string, apply func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "method not allowed"})
			return
		}

		var req OperatorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "invalid JSON"})
			return
		}

		if req.TaskID == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "task_id required"})
			return
		}

		if eng == nil || !eng.HasNode(req.TaskID) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: "task not found"})
			return
		}

		events.Emit("info", event, "", map[string]interface{}{
			"task_id": req.TaskID,
		})

		if err := apply(req.TaskID); err != nil {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(OperatorResponse{OK: false, Error: err.Error()})
			return
		}

		_ = json.NewEncoder(w).Encode(OperatorResponse{OK: true})
	}
}

// NewMux builds the API routing table.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/events", eventsHandler)
	mux.HandleFunc("/graph", graphHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/status", statusHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/ws", wsEventsHandler)
	mux.HandleFunc("/operator/cancel", RequireAnyRole(operatorHandler("operator.cancel", func(id string) error {
		return eng.Cancel(id)
	})))
	mux.HandleFunc("/operator/retry", RequireAnyRole(operatorHandler("operator.retry", func(id string) error {
		return eng.Retry(id)
	})))
	mux.HandleFunc("/operator/invalidate", RequireAdmin(operatorHandler("operator.invalidate", func(id string) error {
		return eng.Invalidate(id)
	})))
	return mux
}

// ListenAndServe starts the API server on the given port and blocks
// until ctx is cancelled or the server fails. On cancellation the
// server is drained before returning.
func ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: NewMux()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
