package circuit

import (
	"testing"
	"time"
)

// TestBreaker_TripAndRecover exercises the circuit trip-and-recover
// scenario with the recovery timeout scaled down to 100ms so the test runs
// quickly: three consecutive failures trip OPEN; a call
// before the recovery timeout stays OPEN; a call after the recovery
// timeout moves to HALF_OPEN, and a single success there closes it.
func TestBreaker_TripAndRecover(t *testing.T) {
	b := NewBreaker("test-backend", 3, 100*time.Millisecond, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d: expected CLOSED to admit", i)
		}
		b.RecordFailure()
	}
	if b.State() != Open {
		t.Fatalf("expected OPEN after 3 consecutive failures, got %v", b.State())
	}

	if b.Allow() {
		t.Fatal("expected OPEN to reject before recovery timeout elapses")
	}

	time.Sleep(120 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected a trial call to be admitted once recovery timeout has elapsed")
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected HALF_OPEN after recovery timeout, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected CLOSED after a half-open success, got %v", b.State())
	}
}

func TestBreaker_HalfOpenPermitBudget(t *testing.T) {
	b := NewBreaker("test-backend", 1, time.Millisecond, 1)

	b.Allow()
	b.RecordFailure() // trips OPEN
	time.Sleep(5 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected first half-open trial to be admitted")
	}
	if b.Allow() {
		t.Fatal("expected second concurrent half-open trial to be rejected by the permit budget")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test-backend", 1, time.Millisecond, 1)

	b.Allow()
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	b.Allow()
	b.RecordFailure()
	if b.State() != Open {
		t.Fatalf("expected a half-open failure to reopen the breaker, got %v", b.State())
	}
}

// TestBreaker_HalfOpenClosesOnlyAfterConsecutiveSuccessStreak exercises a
// half_open_max_calls > 1 configuration: the breaker must stay HALF_OPEN
// through the first halfOpenMaxCalls-1 successes and close only once the
// streak reaches halfOpenMaxCalls. A failure partway through the streak
// resets the count and reopens immediately.
func TestBreaker_HalfOpenClosesOnlyAfterConsecutiveSuccessStreak(t *testing.T) {
	b := NewBreaker("test-backend", 1, time.Millisecond, 3)

	b.Allow()
	b.RecordFailure() // trips OPEN
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("trial %d: expected half-open trial to be admitted", i)
		}
		b.RecordSuccess()
		if b.State() != HalfOpen {
			t.Fatalf("trial %d: expected breaker to stay HALF_OPEN short of the success streak, got %v", i, b.State())
		}
	}

	if !b.Allow() {
		t.Fatal("expected the third half-open trial to be admitted")
	}
	b.RecordSuccess()
	if b.State() != Closed {
		t.Fatalf("expected CLOSED once the success streak reached halfOpenMaxCalls, got %v", b.State())
	}
}

// TestBreaker_SetOnTransition exercises the transition hook a metrics
// recorder installs: it must fire exactly once per real state change,
// labeled with the breaker's name and the state entered.
func TestBreaker_SetOnTransition(t *testing.T) {
	b := NewBreaker("test-backend", 1, time.Millisecond, 1)

	var transitions []State
	b.SetOnTransition(func(name string, from, to State) {
		if name != "test-backend" {
			t.Fatalf("expected transition callback name %q, got %q", "test-backend", name)
		}
		transitions = append(transitions, to)
	})

	b.Allow()
	b.RecordFailure() // CLOSED -> OPEN
	time.Sleep(5 * time.Millisecond)
	b.Allow() // OPEN -> HALF_OPEN
	b.RecordSuccess() // HALF_OPEN -> CLOSED

	want := []State{Open, HalfOpen, Closed}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i, s := range want {
		if transitions[i] != s {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

type fakeCircuitMetrics struct {
	states []string
}

func (f *fakeCircuitMetrics) RecordCircuitState(name, state string) {
	f.states = append(f.states, name+":"+state)
}

// TestRegistry_SetMetricsWiresExistingAndFutureBreakers checks that
// SetMetrics reaches a breaker already created before the call as well as
// one created afterward by Get.
func TestRegistry_SetMetricsWiresExistingAndFutureBreakers(t *testing.T) {
	r := NewRegistry(1, time.Millisecond, 1)
	existing := r.Get("existing")

	recorder := &fakeCircuitMetrics{}
	r.SetMetrics(recorder)

	existing.Allow()
	existing.RecordFailure() // CLOSED -> OPEN, should be recorded

	future := r.Get("future")
	future.Allow()
	future.RecordFailure() // CLOSED -> OPEN, should also be recorded

	want := []string{"existing:open", "future:open"}
	if len(recorder.states) != len(want) {
		t.Fatalf("expected recorded states %v, got %v", want, recorder.states)
	}
	for i, s := range want {
		if recorder.states[i] != s {
			t.Fatalf("expected recorded states %v, got %v", want, recorder.states)
		}
	}
}
