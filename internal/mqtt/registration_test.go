package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/darianrosebrook/minebot/internal/config"
)

func TestParseAnnounce(t *testing.T) {
	data, err := json.Marshal(minerAnnounce())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	payload, err := ParseAnnounce(data)
	if err != nil {
		t.Fatalf("ParseAnnounce failed: %v", err)
	}
	if payload.Executor.ID != "mining" {
		t.Errorf("expected executor mining, got %s", payload.Executor.ID)
	}
	if payload.Executor.HeartbeatSec != 30 {
		t.Errorf("expected heartbeat 30s, got %d", payload.Executor.HeartbeatSec)
	}
}

func TestParseAnnounceRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed", "{not json"},
		{"wrong version", `{"version": 2, "executor": {"id": "mining"}}`},
		{"missing id", `{"version": 1, "executor": {}}`},
	}
	for _, c := range cases {
		if _, err := ParseAnnounce([]byte(c.data)); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestParseHeartbeat(t *testing.T) {
	hb, err := ParseHeartbeat([]byte(`{"executor_id": "mining", "uptime_ms": 5000}`))
	if err != nil {
		t.Fatalf("ParseHeartbeat failed: %v", err)
	}
	if hb.ExecutorID != "mining" || hb.UptimeMS != 5000 {
		t.Errorf("unexpected heartbeat: %+v", hb)
	}

	if _, err := ParseHeartbeat([]byte(`{"uptime_ms": 5000}`)); err == nil {
		t.Errorf("expected error for missing executor_id")
	}
}

func testSpecs() map[string]config.ExecutorSpec {
	return map[string]config.ExecutorSpec{
		"mining": {
			TaskTypes: []string{"mine_block", "mine_vein"},
			Required:  true,
		},
		"crafting": {
			TaskTypes: []string{"craft_item", "smelt_item"},
			Required:  true,
		},
	}
}

func TestValidateAnnounceKnownExecutor(t *testing.T) {
	result := ValidateAnnounce(minerAnnounce(), testSpecs())
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateAnnounceUnknownExecutorWarns(t *testing.T) {
	payload := minerAnnounce()
	payload.Executor.ID = "fishing"

	result := ValidateAnnounce(payload, testSpecs())
	if !result.Valid {
		t.Fatalf("unknown executor should be accepted, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning for unrecognized executor, got %v", result.Warnings)
	}
}

func TestValidateAnnounceMissingTaskType(t *testing.T) {
	payload := minerAnnounce()
	payload.Executor.TaskTypes = []string{"mine_block"} // config also wants mine_vein

	result := ValidateAnnounce(payload, testSpecs())
	if result.Valid {
		t.Fatalf("expected invalid for missing configured task type")
	}
}

func TestValidateAnnounceMissingCommandTopic(t *testing.T) {
	payload := minerAnnounce()
	payload.Topics.Command = ""

	result := ValidateAnnounce(payload, testSpecs())
	if result.Valid {
		t.Fatalf("expected invalid without command topic")
	}
}

func TestValidateAnnounceNoTaskTypes(t *testing.T) {
	payload := minerAnnounce()
	payload.Executor.TaskTypes = nil

	result := ValidateAnnounce(payload, testSpecs())
	if result.Valid {
		t.Fatalf("expected invalid with no task types")
	}
}

func TestMissingRequired(t *testing.T) {
	reg := NewExecutorRegistry()
	reg.RegisterFromPayload(minerAnnounce())

	missing := MissingRequired(testSpecs(), reg)
	if len(missing) != 1 || missing[0] != "crafting" {
		t.Errorf("expected [crafting] missing, got %v", missing)
	}
}

func TestTopicHelper(t *testing.T) {
	if got := Topic("miner-01", TopicTaskSubmit); got != "bot/miner-01/tasks/submit" {
		t.Errorf("unexpected topic: %s", got)
	}
	if got := Topic("miner-01", TopicExecutorAnnounce); got != "bot/miner-01/executors/announce" {
		t.Errorf("unexpected topic: %s", got)
	}
}

func TestMonitorAnnounceAndHealth(t *testing.T) {
	reg := NewExecutorRegistry()
	m := NewMonitor(reg, testSpecs(), 2.0)

	result := m.HandleAnnounce(minerAnnounce())
	if !result.Valid {
		t.Fatalf("announce rejected: %v", result.Errors)
	}
	if !reg.Exists("mining") {
		t.Fatalf("valid announce not registered")
	}
	if !m.IsConnected("mining") {
		t.Fatalf("announced executor not connected")
	}

	connected := m.ConnectedExecutors()
	if len(connected) != 1 || connected[0] != "mining" {
		t.Errorf("unexpected connected set: %v", connected)
	}
}

func TestMonitorRejectsInvalidAnnounce(t *testing.T) {
	reg := NewExecutorRegistry()
	m := NewMonitor(reg, testSpecs(), 2.0)

	payload := minerAnnounce()
	payload.Topics.Command = ""

	result := m.HandleAnnounce(payload)
	if result.Valid {
		t.Fatalf("expected invalid announce")
	}
	if reg.Exists("mining") {
		t.Errorf("invalid announce was registered")
	}
	if m.IsConnected("mining") {
		t.Errorf("invalid announce marked connected")
	}
}

func TestMonitorHeartbeatRefreshesState(t *testing.T) {
	reg := NewExecutorRegistry()
	m := NewMonitor(reg, testSpecs(), 2.0)
	m.HandleAnnounce(minerAnnounce())

	before := m.GetExecutorState("mining")
	if before == nil {
		t.Fatalf("no state after announce")
	}

	m.HandleHeartbeat(&HeartbeatPayload{ExecutorID: "mining", UptimeMS: 9000})

	after := m.GetExecutorState("mining")
	if after.LastSeen.Before(before.LastSeen) {
		t.Errorf("heartbeat did not refresh LastSeen")
	}
	if !m.IsConnected("mining") {
		t.Errorf("heartbeat dropped connected state")
	}
}

func TestMonitorHeartbeatTimeout(t *testing.T) {
	reg := NewExecutorRegistry()
	m := NewMonitor(reg, testSpecs(), 2.0)
	m.HandleAnnounce(minerAnnounce())

	// Backdate the last heartbeat past the tolerance window (30s * 2.0).
	m.mu.Lock()
	m.states["mining"].LastSeen = time.Now().Add(-61 * time.Second)
	m.mu.Unlock()

	m.checkHealth()

	if m.IsConnected("mining") {
		t.Fatalf("executor still connected past heartbeat timeout")
	}

	// A fresh heartbeat reconnects it.
	m.HandleHeartbeat(&HeartbeatPayload{ExecutorID: "mining"})
	if !m.IsConnected("mining") {
		t.Fatalf("heartbeat did not reconnect timed-out executor")
	}
}

func TestMonitorHeartbeatUnknownExecutor(t *testing.T) {
	reg := NewExecutorRegistry()
	m := NewMonitor(reg, testSpecs(), 2.0)

	// Heartbeat before announce must not panic or register anything.
	m.HandleHeartbeat(&HeartbeatPayload{ExecutorID: "ghost"})
	if reg.Exists("ghost") {
		t.Errorf("heartbeat registered an unannounced executor")
	}
}
