package core

import "testing"

func TestTaskState_Edges(t *testing.T) {
	valid := []struct{ from, to TaskState }{
		{TaskPending, TaskRunning},
		{TaskPending, TaskCancelled},
		{TaskRunning, TaskPaused},
		{TaskRunning, TaskCompleted},
		{TaskRunning, TaskFailed},
		{TaskRunning, TaskCancelled},
		{TaskPaused, TaskRunning},
		{TaskPaused, TaskCancelled},
	}
	for _, e := range valid {
		if !e.from.CanTransition(e.to) {
			t.Errorf("expected %s -> %s to be valid", e.from, e.to)
		}
	}

	invalid := []struct{ from, to TaskState }{
		{TaskPending, TaskCompleted}, // never skips Running
		{TaskPending, TaskPaused},
		{TaskPaused, TaskCompleted},
		{TaskCompleted, TaskRunning},
		{TaskFailed, TaskRunning},
		{TaskCancelled, TaskPending},
	}
	for _, e := range invalid {
		if e.from.CanTransition(e.to) {
			t.Errorf("expected %s -> %s to be rejected", e.from, e.to)
		}
	}
}

func TestTaskState_Terminal(t *testing.T) {
	for _, s := range []TaskState{TaskCompleted, TaskFailed, TaskCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TaskState{TaskPending, TaskRunning, TaskPaused} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTask_CompletedStep(t *testing.T) {
	task := NewTask("s1", TaskInput{Query: "q"})
	if _, ok := task.CompletedStep("retrieve"); ok {
		t.Fatal("fresh task should have no completed steps")
	}
	task.Steps = append(task.Steps, StepResult{Name: "retrieve", Output: "ctx"})
	step, ok := task.CompletedStep("retrieve")
	if !ok || step.Output != "ctx" {
		t.Fatalf("expected recorded step, got %+v ok=%v", step, ok)
	}
}
