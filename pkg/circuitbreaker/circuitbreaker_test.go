package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
	}
}

func TestExecute_OpensAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	fail := func() error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// Open circuit rejects without invoking fn.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected rejection while open")
	}
	if called {
		t.Fatal("fn must not run while open")
	}
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}

	time.Sleep(15 * time.Millisecond)

	ok := func() error { return nil }
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe should pass after timeout, got: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	if err := cb.Execute(ok); err != nil {
		t.Fatalf("second success should close circuit, got: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
}

func TestOnStateChange(t *testing.T) {
	cb := New(testConfig())
	var transitions []string
	cb.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("transitions = %v, want [closed->open]", transitions)
	}
}
