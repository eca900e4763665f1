package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	botName   string
}

// readiness tracks connectivity of the bot's collaborators.
var readiness = struct {
	mu                sync.RWMutex
	engineReady       bool
	mqttConnected     bool
	postgresConnected bool
}{}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetBotName sets the bot name for metrics labels.
func SetBotName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.botName = name
}

// SetEngineReady records whether the engine finished startup.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetMQTTConnected records broker connectivity.
func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetPostgresConnected records database connectivity.
func SetPostgresConnected(connected bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.mu.Unlock()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	botName := metricsState.botName
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := events.TotalCount()
	wsClients := events.SubscriberCount()

	var total, running, completed, failed int
	if eng != nil {
		st := eng.Status()
		total, running, completed, failed = st.Total, st.Running, st.Completed, st.Failed
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`bot="%s",instance="%s",version="%s"`, botName, hostname, version.Version)

	writeMetric("minebot_uptime_seconds", "gauge",
		"Number of seconds since the bot started", uptime, labels)

	writeMetric("minebot_engine_ready", "gauge",
		"Whether the task engine finished startup (1) or not (0)", boolToInt(engineReady), labels)

	writeMetric("minebot_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	writeMetric("minebot_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolToInt(mqttConnected), labels)

	writeMetric("minebot_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolToInt(postgresConnected), labels)

	writeMetric("minebot_ws_clients", "gauge",
		"Number of active WebSocket client connections", wsClients, labels)

	writeMetric("minebot_tasks_total", "gauge",
		"Number of task nodes in the dependency graph", total, labels)

	writeMetric("minebot_tasks_running", "gauge",
		"Number of tasks currently running", running, labels)

	writeMetric("minebot_tasks_completed", "gauge",
		"Number of tasks completed", completed, labels)

	writeMetric("minebot_tasks_failed", "gauge",
		"Number of tasks failed", failed, labels)
}
