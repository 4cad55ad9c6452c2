package kiosk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
)

const testInterval = 20 * time.Millisecond

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func newTestPoller(source StatusSource, policy FallbackPolicy) *KitchenStatusPoller {
	return NewKitchenStatusPoller(source, PollerConfig{Interval: testInterval, Fallback: policy}, apt.NewNoopLogger())
}

func TestKitchenStatusPollerStates(t *testing.T) {
	p := newTestPoller(NewMockStatusSource(), FallbackSynthetic)
	if p.State() != PollerIdle {
		t.Fatalf("initial state = %s, want idle", p.State())
	}

	p.Bind("T1")
	if p.State() != PollerPolling {
		t.Errorf("state after Bind = %s, want polling", p.State())
	}
	if p.TicketID() != "T1" {
		t.Errorf("TicketID() = %s, want T1", p.TicketID())
	}

	p.Stop()
	if p.State() != PollerStopped {
		t.Errorf("state after Stop = %s, want stopped", p.State())
	}

	p.Stop()
}

func TestKitchenStatusPollerFetchesImmediatelyThenOnInterval(t *testing.T) {
	source := NewMockStatusSource()
	p := NewKitchenStatusPoller(source, PollerConfig{Interval: time.Hour}, nil)
	defer p.Stop()

	p.Bind("T1")
	eventually(t, time.Second, func() bool { return source.Calls("T1") == 1 }, "first fetch")

	status, ok := p.Status()
	if !ok {
		t.Fatal("Status() not available after first fetch")
	}
	if status.Status != "verified" || status.Verification.Status != "ok" {
		t.Errorf("status = %+v, want verified/ok", status)
	}
	if status.Degraded {
		t.Error("genuine status marked degraded")
	}

	fast := newTestPoller(source, FallbackSynthetic)
	defer fast.Stop()
	fast.Bind("T2")
	eventually(t, time.Second, func() bool { return source.Calls("T2") >= 3 }, "interval fetches")
}

func TestKitchenStatusPollerFallbackOnFailure(t *testing.T) {
	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		return VerificationStatus{}, errors.New("connection refused")
	}
	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	p.Bind("T1")
	eventually(t, time.Second, func() bool { _, ok := p.Status(); return ok }, "fallback applied")

	status, _ := p.Status()
	if status.Status != "pending" {
		t.Errorf("status = %s, want pending", status.Status)
	}
	if status.Verification.Status != "mismatch" {
		t.Errorf("verification = %s, want mismatch", status.Verification.Status)
	}
	if len(status.Verification.Missing) != 1 || status.Verification.Missing[0] != "fries" {
		t.Errorf("missing = %v, want [fries]", status.Verification.Missing)
	}
	if !status.Degraded {
		t.Error("fallback status not marked degraded")
	}
	if status.TicketID != "T1" {
		t.Errorf("ticket id = %s, want T1", status.TicketID)
	}

	eventually(t, time.Second, func() bool { return source.Calls("T1") >= 3 }, "polling continues after failure")
	if p.State() != PollerPolling {
		t.Errorf("state = %s, want polling", p.State())
	}
}

func TestKitchenStatusPollerGenuineMismatchIsNotDegraded(t *testing.T) {
	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		return VerificationStatus{
			Status:       "pending",
			Verification: Verification{Status: "mismatch", Missing: []string{"fries"}},
		}, nil
	}
	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	p.Bind("T1")
	eventually(t, time.Second, func() bool { _, ok := p.Status(); return ok }, "status applied")

	status, _ := p.Status()
	if status.Degraded {
		t.Error("backend reported mismatch marked degraded")
	}
	if !status.ShowMismatch() {
		t.Error("ShowMismatch() = false, want true")
	}
}

func TestKitchenStatusPollerLastKnownFallback(t *testing.T) {
	var mu sync.Mutex
	fail := false

	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return VerificationStatus{}, errors.New("timeout")
		}
		return VerificationStatus{Status: "verified", Verification: Verification{Status: "ok"}}, nil
	}

	p := newTestPoller(source, FallbackLastKnown)
	defer p.Stop()

	p.Bind("T1")
	eventually(t, time.Second, func() bool { _, ok := p.Status(); return ok }, "first status")

	mu.Lock()
	fail = true
	mu.Unlock()

	eventually(t, time.Second, func() bool {
		s, _ := p.Status()
		return s.Degraded
	}, "degraded status")

	status, _ := p.Status()
	if status.Status != "verified" || status.Verification.Status != "ok" {
		t.Errorf("status = %+v, want last known verified/ok", status)
	}
}

func TestKitchenStatusPollerRebindStopsPrevious(t *testing.T) {
	source := NewMockStatusSource()
	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	p.Bind("A")
	eventually(t, time.Second, func() bool { return source.Calls("A") >= 2 }, "ticket A polled")

	p.Bind("B")
	callsA := source.Calls("A")

	eventually(t, time.Second, func() bool { return source.Calls("B") >= 3 }, "ticket B polled")
	if got := source.Calls("A"); got != callsA {
		t.Errorf("ticket A polled %d more times after rebind", got-callsA)
	}

	status, ok := p.Status()
	if !ok || status.TicketID != "B" {
		t.Errorf("status = %+v, want ticket B", status)
	}
}

func TestKitchenStatusPollerNeverRunsTwoTicketsConcurrently(t *testing.T) {
	var mu sync.Mutex
	active := map[string]bool{}
	overlap := false

	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		mu.Lock()
		for id, on := range active {
			if on && id != ticketID {
				overlap = true
			}
		}
		active[ticketID] = true
		mu.Unlock()

		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
		}

		mu.Lock()
		active[ticketID] = false
		mu.Unlock()
		return VerificationStatus{Status: "pending"}, nil
	}

	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	for _, id := range []string{"A", "B", "C", "D"} {
		p.Bind(id)
		time.Sleep(3 * time.Millisecond)
	}
	time.Sleep(3 * testInterval)

	mu.Lock()
	defer mu.Unlock()
	if overlap {
		t.Error("fetches for different tickets overlapped")
	}
}

func TestKitchenStatusPollerStopSilencesListener(t *testing.T) {
	source := NewMockStatusSource()
	p := newTestPoller(source, FallbackSynthetic)

	var mu sync.Mutex
	calls := 0
	p.OnStatus(func(prev *VerificationStatus, next VerificationStatus) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	p.Bind("T1")
	eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, "listener called")

	p.Stop()
	mu.Lock()
	after := calls
	mu.Unlock()
	fetches := source.Calls("T1")

	time.Sleep(4 * testInterval)

	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("listener called %d times after Stop", calls-after)
	}
	if got := source.Calls("T1"); got != fetches {
		t.Errorf("fetched %d times after Stop", got-fetches)
	}
}

func TestKitchenStatusPollerStalledFetchDoesNotBlockTicks(t *testing.T) {
	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		<-ctx.Done()
		return VerificationStatus{}, ctx.Err()
	}

	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	p.Bind("T1")
	eventually(t, time.Second, func() bool { return source.Calls("T1") >= 3 }, "ticks keep firing")

	status, ok := p.Status()
	if !ok || !status.Degraded {
		t.Errorf("status = %+v, want degraded fallback", status)
	}
}

func TestKitchenStatusPollerNormalizesUnknownValues(t *testing.T) {
	source := NewMockStatusSource()
	source.KitchenStatusFunc = func(ctx context.Context, ticketID string) (VerificationStatus, error) {
		return VerificationStatus{Status: "in_kitchen", Verification: Verification{Status: "weird"}}, nil
	}
	p := newTestPoller(source, FallbackSynthetic)
	defer p.Stop()

	p.Bind("T9")
	eventually(t, time.Second, func() bool { _, ok := p.Status(); return ok }, "status applied")

	status, _ := p.Status()
	if status.Status != "pending" {
		t.Errorf("status = %s, want pending", status.Status)
	}
	if status.Verification.Status != "unknown" {
		t.Errorf("verification = %s, want unknown", status.Verification.Status)
	}
	if status.Verification.Missing == nil {
		t.Error("missing is nil, want empty")
	}
	if status.TicketID != "T9" {
		t.Errorf("ticket id = %s, want T9", status.TicketID)
	}
}

func TestParseFallbackPolicy(t *testing.T) {
	tests := map[string]FallbackPolicy{
		"":           FallbackSynthetic,
		"synthetic":  FallbackSynthetic,
		"last_known": FallbackLastKnown,
		"bogus":      FallbackSynthetic,
	}
	for in, want := range tests {
		if got := ParseFallbackPolicy(in); got != want {
			t.Errorf("ParseFallbackPolicy(%q) = %s, want %s", in, got, want)
		}
	}
}
