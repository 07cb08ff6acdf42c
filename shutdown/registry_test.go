package shutdown

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShutdownRegistry_Order(t *testing.T) {
	r := NewShutdownRegistry()
	var order []string
	add := func(name string, priority int) {
		r.Register(name, priority, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	add("logger", 90)
	add("http-server", 10)
	add("history-writer", 20)
	add("retention", 20)
	add("database", 30)

	want := []string{"http-server", "history-writer", "retention", "database", "logger"}
	if names := r.Names(); strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", names, want)
	}

	if errs := r.Shutdown(context.Background()); len(errs) != 0 {
		t.Errorf("Shutdown() errors = %v", errs)
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestShutdownRegistry_CollectsErrorsAndRunsAll(t *testing.T) {
	r := NewShutdownRegistry()
	ran := 0
	boom := errors.New("boom")
	r.Register("first", 1, func(context.Context) error { ran++; return boom })
	r.Register("second", 2, func(context.Context) error { ran++; return nil })

	errs := r.Shutdown(context.Background())
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) || !strings.HasPrefix(errs[0].Error(), "first:") {
		t.Errorf("errs = %v", errs)
	}
}

func TestShutdownRegistry_Idempotent(t *testing.T) {
	r := NewShutdownRegistry()
	calls := 0
	r.Register("once", 1, func(context.Context) error { calls++; return nil })

	r.Shutdown(context.Background())
	r.Shutdown(context.Background())
	r.Register("late", 1, func(context.Context) error { calls++; return nil })

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !r.IsClosed() || r.Count() != 1 {
		t.Errorf("closed = %v count = %d", r.IsClosed(), r.Count())
	}
}
