package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTarget(t *testing.T, raw string) Target {
	t.Helper()
	target, err := NewTarget(raw)
	if err != nil {
		t.Fatalf("NewTarget(%q) error = %v", raw, err)
	}
	return target
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		if p := New(WithContinueOnError(true)); !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineSteps(t *testing.T) {
	t.Parallel()

	p := New(WithLogger(quietLogger()))
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if got := p.StepNames(); !slices.Equal(got, []string{"first", "second", "third"}) {
		t.Errorf("StepNames() = %v", got)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Run) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(step("a"), step("b"))
		run := NewRun(mustTarget(t, "https://example.com"))

		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !slices.Equal(order, []string{"a", "b"}) {
			t.Errorf("order = %v", order)
		}
		if !slices.Equal(run.Steps, []string{"a", "b"}) {
			t.Errorf("run.Steps = %v", run.Steps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "fail", doFunc: func(context.Context, *Run) error { return errBoom }}
		after := &mockStep{name: "after"}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(failing, after)
		run := NewRun(mustTarget(t, "https://example.com"))

		if err := p.Execute(context.Background(), run); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want boom", err)
		}
		if after.callCount != 0 {
			t.Error("step after failure was executed")
		}
		if !errors.Is(run.Err, errBoom) {
			t.Errorf("run.Err = %v", run.Err)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "fail", doFunc: func(context.Context, *Run) error { return errBoom }}
		after := &mockStep{name: "after"}

		p := New(WithLogger(quietLogger()), WithContinueOnError(true))
		p.AddSteps(failing, after)
		run := NewRun(mustTarget(t, "https://example.com"))

		if err := p.Execute(context.Background(), run); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want boom", err)
		}
		if after.callCount != 1 {
			t.Error("step after failure was skipped")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New(WithLogger(quietLogger()))
		p.AddStep(step)
		run := NewRun(mustTarget(t, "https://example.com"))

		if err := p.Execute(ctx, run); !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute() error = %v, want context.Canceled", err)
		}
		if step.callCount != 0 {
			t.Error("step ran after cancellation")
		}
	})
}

func TestNewTarget(t *testing.T) {
	t.Parallel()

	target := mustTarget(t, "https://Example.com/docs/")
	if target.Site.Origin() != "https://example.com" {
		t.Errorf("Origin() = %q", target.Site.Origin())
	}
	if target.Seed != "/docs" {
		t.Errorf("Seed = %q", target.Seed)
	}
	if target.URL != "https://Example.com/docs/" {
		t.Errorf("URL = %q", target.URL)
	}

	if _, err := NewTarget("ftp://example.com"); err == nil {
		t.Error("NewTarget(ftp) error = nil")
	}
}
