package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestQueueError(t *testing.T) {
	err := NewQueueError("enqueue", "proj-1", ErrProjectActive)

	if !Is(err, ErrProjectActive) {
		t.Error("expected errors.Is to match ErrProjectActive")
	}
	want := "queue enqueue proj-1: project is currently active"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestQueueErrorNoProject(t *testing.T) {
	err := NewQueueError("start", "", ErrQueueEmpty)
	want := "queue start: project queue is empty"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("backend unavailable")
	err := NewExecutionError("proj-1", "pkt-1", cause)

	if !Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	var execErr *ExecutionError
	if !As(fmt.Errorf("wrapped: %w", err), &execErr) {
		t.Fatal("expected errors.As to find ExecutionError through wrapping")
	}
	if execErr.PacketID != "pkt-1" {
		t.Errorf("PacketID = %q, want pkt-1", execErr.PacketID)
	}
}

func TestMaxIterationsError(t *testing.T) {
	err := NewMaxIterationsError("pkt-9", 15, 0.5)

	want := "packet pkt-9 did not converge after 15 iterations (confidence 0.50)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestApplyError(t *testing.T) {
	// Every applier message is part of the rendered error, not just
	// the first.
	err := NewApplyError("wiggum/demo-20240101", []string{"push rejected", "retry later"})
	want := "apply to branch wiggum/demo-20240101 failed: push rejected; retry later"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	empty := NewApplyError("b", nil)
	if empty.Error() != "apply to branch b failed" {
		t.Errorf("Error() = %q", empty.Error())
	}
}

func TestIsStop(t *testing.T) {
	if !IsStop(ErrStopped) {
		t.Error("expected ErrStopped to be a stop")
	}
	if !IsStop(fmt.Errorf("loop: %w", ErrInterrupted)) {
		t.Error("expected wrapped ErrInterrupted to be a stop")
	}
	if IsStop(errors.New("boom")) {
		t.Error("plain error should not be a stop")
	}
}
