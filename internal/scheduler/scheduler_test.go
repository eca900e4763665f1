package scheduler

import (
	"testing"

	"github.com/darianrosebrook/minebot/internal/graph"
	"github.com/darianrosebrook/minebot/internal/task"
)

func newValidNode(t *testing.T, g *graph.DependencyGraph, id string, priority task.Priority) *graph.TaskNode {
	t.Helper()
	n := g.AddNode(task.Task{ID: id, Type: "move_to", Priority: priority}, id)
	n.SetValidationStatus(graph.ValidationValid)
	return n
}

func TestNextBatchPriorityOrder(t *testing.T) {
	g := graph.New()
	s := New(g)

	newValidNode(t, g, "low", task.PriorityLow)
	newValidNode(t, g, "high", task.PriorityHigh)
	newValidNode(t, g, "medium", task.PriorityMedium)

	batch := s.NextBatch()
	if len(batch) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(batch))
	}
	want := []string{"high", "medium", "low"}
	for i, id := range want {
		if batch[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, batch[i].ID)
		}
	}
}

func TestNextBatchTieBreakByInsertion(t *testing.T) {
	g := graph.New()
	s := New(g)

	newValidNode(t, g, "first", task.PriorityMedium)
	newValidNode(t, g, "second", task.PriorityMedium)
	newValidNode(t, g, "third", task.PriorityMedium)

	batch := s.NextBatch()
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if batch[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, batch[i].ID)
		}
	}
}

func TestMarkRunningPreventsDoubleDispatch(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if !s.IsRunning("a") {
		t.Errorf("expected a in running set")
	}
	if g.Node("a").ExecutionState() != graph.ExecutionRunning {
		t.Errorf("expected node execution running")
	}

	// Second dispatch of the same node is rejected.
	if err := s.MarkRunning("a"); err == nil {
		t.Fatalf("expected error on double MarkRunning")
	}

	// And the running node never reappears in a batch.
	for _, n := range s.NextBatch() {
		if n.ID == "a" {
			t.Fatalf("running node returned by NextBatch")
		}
	}
}

func TestMarkRunningUnknownNode(t *testing.T) {
	s := New(graph.New())
	if err := s.MarkRunning("ghost"); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}

func TestCompletionLifecycle(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := s.MarkCompleted("a"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	if s.IsRunning("a") {
		t.Errorf("completed node still in running set")
	}
	if !g.Node("a").IsCompleted() {
		t.Errorf("node execution state not completed")
	}

	st := s.Status()
	if st.Completed != 1 || st.Running != 0 || st.Failed != 0 {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestFailureAndRetry(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := s.MarkFailed("a"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if st := s.Status(); st.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", st)
	}

	if err := s.Retry("a"); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if g.Node("a").ExecutionState() != graph.ExecutionPending {
		t.Errorf("retried node not reset to pending")
	}
	if st := s.Status(); st.Failed != 0 {
		t.Errorf("retried node still counted failed: %+v", st)
	}

	// The retried node is dispatchable again.
	batch := s.NextBatch()
	if len(batch) != 1 || batch[0].ID != "a" {
		t.Fatalf("retried node not in next batch: %v", batch)
	}
}

func TestRetryRequiresTerminalFailure(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	// Pending node is not retryable.
	if err := s.Retry("a"); err == nil {
		t.Fatalf("expected error retrying pending node")
	}

	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := s.Retry("a"); err == nil {
		t.Fatalf("expected error retrying running node")
	}

	// Completed is terminal but not retryable either.
	if err := s.MarkCompleted("a"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if err := s.Retry("a"); err == nil {
		t.Fatalf("expected error retrying completed node")
	}
}

func TestCancelledIsRetryable(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	if err := s.MarkCancelled("a"); err != nil {
		t.Fatalf("MarkCancelled failed: %v", err)
	}
	if !g.Node("a").IsCancelled() {
		t.Errorf("node not cancelled")
	}
	if err := s.Retry("a"); err != nil {
		t.Fatalf("Retry after cancel failed: %v", err)
	}
}

func TestNextBatchHonorsDependencies(t *testing.T) {
	g := graph.New()
	s := New(g)

	// Low-priority root gates a high-priority dependent: the dependent
	// must not jump the queue before its dependency completes.
	newValidNode(t, g, "gather", task.PriorityLow)
	newValidNode(t, g, "craft", task.PriorityHigh)
	if err := g.AddEdge("gather", "craft"); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	batch := s.NextBatch()
	if len(batch) != 1 || batch[0].ID != "gather" {
		t.Fatalf("expected only gather dispatchable, got %v", batch)
	}

	if err := s.MarkRunning("gather"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if err := s.MarkCompleted("gather"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	batch = s.NextBatch()
	if len(batch) != 1 || batch[0].ID != "craft" {
		t.Fatalf("expected craft dispatchable after gather, got %v", batch)
	}
}

func TestForget(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)

	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	g.RemoveNode("a")
	s.Forget("a")

	if s.IsRunning("a") {
		t.Errorf("forgotten node still in running set")
	}
	if st := s.Status(); st.Total != 0 || st.Running != 0 {
		t.Errorf("unexpected status after forget: %+v", st)
	}
}

func TestClear(t *testing.T) {
	g := graph.New()
	s := New(g)
	newValidNode(t, g, "a", task.PriorityMedium)
	if err := s.MarkRunning("a"); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}

	g.Clear()
	s.Clear()

	st := s.Status()
	if st.Total != 0 || st.Running != 0 || st.Completed != 0 || st.Failed != 0 {
		t.Errorf("expected zeroed status, got %+v", st)
	}
}
