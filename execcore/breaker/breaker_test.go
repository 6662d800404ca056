package breaker

import (
	"testing"
	"time"
)

func cfg() Config {
	return Config{Enabled: true, FailureThreshold: 3, CooldownPeriod: 50 * time.Millisecond, HalfOpenMaxAttempts: 1}
}

func TestClosedAllowsExecution(t *testing.T) {
	b := New(cfg(), nil)
	if !b.CanExecute() {
		t.Fatal("closed breaker must allow execution")
	}
}

func TestTripsOpenAfterThreshold(t *testing.T) {
	b := New(cfg(), nil)
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed before threshold", b.State())
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if b.CanExecute() {
		t.Fatal("open breaker within cooldown must reject")
	}
}

func TestHalfOpenAfterCooldownAllowsOneAttempt(t *testing.T) {
	b := New(cfg(), nil)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	if !b.CanExecute() {
		t.Fatal("expected half-open to allow first attempt")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}
	if b.CanExecute() {
		t.Fatal("half-open must reject a second concurrent attempt with max 1 slot")
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(cfg(), nil)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	b.CanExecute()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open after half-open failure", b.State())
	}
}

func TestHalfOpenSuccessCloses(t *testing.T) {
	b := New(cfg(), nil)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	b.CanExecute()
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed after half-open success", b.State())
	}
}

func TestSuccessWhileOpenIsIgnored(t *testing.T) {
	b := New(cfg(), nil)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want still open: success while open is a stale inflight completion, not a close signal", b.State())
	}
}

func TestForceOpenAndForceClose(t *testing.T) {
	b := New(cfg(), nil)
	b.ForceOpen()
	if b.State() != StateOpen {
		t.Fatal("expected forced open")
	}
	b.ForceClose()
	if b.State() != StateClosed {
		t.Fatal("expected forced close")
	}
}

func TestDisabledBreakerAlwaysAllows(t *testing.T) {
	c := cfg()
	c.Enabled = false
	b := New(c, nil)
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	if !b.CanExecute() {
		t.Fatal("disabled breaker must always allow execution")
	}
}

func TestOnChangeCallbackPanicIsSwallowed(t *testing.T) {
	b := New(cfg(), func(from, to State) { panic("boom") })
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != StateOpen {
		t.Fatal("transition must still apply even if callback panics")
	}
}
