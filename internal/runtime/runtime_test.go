package runtime_test

import (
	"testing"
	"time"

	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/pkg/models"
)

func TestClearRuntime_Idempotent(t *testing.T) {
	s := runtime.New()
	plan := &models.ActionPlan{PlanID: "p1"}
	s.SetCurrentPlan(plan)
	s.SetProgress(models.NewExecutionProgress(plan, time.Now()))
	s.SetTyping(true)
	s.SetExecuting(true)

	for i := 0; i < 2; i++ {
		s.ClearRuntime()
		if s.CurrentPlan() != nil || s.Progress("p1") != nil || s.Typing() || s.Executing() {
			t.Fatalf("pass %d: runtime not fully cleared", i+1)
		}
	}
}

// Progress for a different plan than asked for is never exposed.
func TestProgress_StaleNeverShown(t *testing.T) {
	s := runtime.New()
	plan := &models.ActionPlan{PlanID: "p1", Steps: []models.ActionStep{{StepNumber: 1, ToolName: "t"}}}
	s.SetProgress(models.NewExecutionProgress(plan, time.Now()))

	if got := s.Progress("p2"); got != nil {
		t.Errorf("Progress(p2) = %+v, want nil for a different plan", got)
	}
	if got := s.Progress("p1"); got == nil {
		t.Error("Progress(p1) = nil, want the seeded progress")
	}
}

func TestFinishExecution(t *testing.T) {
	s := runtime.New()
	plan := &models.ActionPlan{PlanID: "p1"}
	s.SetCurrentPlan(plan)
	s.SetProgress(models.NewExecutionProgress(plan, time.Now()))
	s.SetExecuting(true)

	// Failure path keeps the current plan.
	s.FinishExecution(false)
	if s.Executing() || s.Progress("p1") != nil {
		t.Error("executing/progress survived FinishExecution(false)")
	}
	if s.CurrentPlan() == nil {
		t.Error("current plan cleared on non-terminal finish")
	}

	// Terminal path clears it.
	s.SetExecuting(true)
	s.FinishExecution(true)
	if s.CurrentPlan() != nil {
		t.Error("current plan survived FinishExecution(true)")
	}
}

func TestNewExecutionProgress_SeedsAllPending(t *testing.T) {
	plan := &models.ActionPlan{
		PlanID: "p1",
		Steps: []models.ActionStep{
			{StepNumber: 1, ToolName: "a"},
			{StepNumber: 2, ToolName: "b"},
		},
	}
	p := models.NewExecutionProgress(plan, time.Now())
	if p.ActionID != "p1" || p.TotalSteps != 2 || p.Status != models.ProgressInitializing {
		t.Errorf("unexpected seed: %+v", p)
	}
	for _, step := range p.Steps {
		if step.Status != models.StepPending {
			t.Errorf("step %d status = %s, want pending", step.StepNumber, step.Status)
		}
	}
}
