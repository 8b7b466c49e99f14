package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

func newTestMonitor(f *fixture, voice secondary.VoiceChannel, cfg TimeoutMonitorConfig) *TimeoutMonitor {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Millisecond
	}
	if cfg.NoticeTimeout == 0 {
		cfg.NoticeTimeout = 50 * time.Millisecond
	}
	return NewTimeoutMonitor(f.escalations, voice, cfg, nil).WithClock(f.clock.Now)
}

func TestTimeoutMonitor_SweepOnce_ExpiresAndNotifies(t *testing.T) {
	f := newFixture(5)
	voice := &mockVoice{}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{Notify: true})
	f.pending("REQ-001", "room-7", "Do you take walk-ins?")

	f.clock.Advance(2*time.Hour + time.Second)
	expired, err := m.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	m.Wait()

	if len(expired) != 1 || expired[0] != "REQ-001" {
		t.Fatalf("expected [REQ-001], got %v", expired)
	}
	if got := f.escRepo.get("REQ-001").ExpiryReason; got != "no supervisor response within the timeout window" {
		t.Errorf("unexpected expiry reason %q", got)
	}

	said := voice.said()
	if len(said) != 1 || said[0].callerID != "room-7" {
		t.Fatalf("expected one notice to room-7, got %+v", said)
	}
	if said[0].text != "Sorry, I wasn't able to get an answer to your question in time." {
		t.Errorf("unexpected notice %q", said[0].text)
	}

	for _, e := range f.logs.entries {
		if e.action == secondary.ActionExpire && e.actor != ctxutil.ActorMonitor {
			t.Errorf("expected expire attributed to the monitor, got %q", e.actor)
		}
	}

	// Expired escalations no longer accept answers.
	err = f.escalations.ResolveEscalation(context.Background(), primary.ResolveEscalationRequest{EscalationID: "REQ-001", Answer: "Yes"})
	if !errors.Is(err, primary.ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestTimeoutMonitor_SweepOnce_NotDue(t *testing.T) {
	f := newFixture(5)
	voice := &mockVoice{}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{Notify: true})
	f.pending("REQ-001", "room-7", "Do you take walk-ins?")

	f.clock.Advance(2*time.Hour - time.Second)
	expired, err := m.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(expired) != 0 || len(voice.said()) != 0 {
		t.Errorf("expected nothing expired, got %v", expired)
	}
}

func TestTimeoutMonitor_SweepOnce_NoticeRespectsCallerFilter(t *testing.T) {
	f := newFixture(5)
	voice := &mockVoice{}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{CallerID: "room-7", Notify: true})
	f.pending("REQ-001", "room-7", "Mine")
	f.pending("REQ-002", "room-8", "Someone else's")

	f.clock.Advance(3 * time.Hour)
	expired, err := m.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(expired) != 2 {
		t.Errorf("expected both escalations expired, got %v", expired)
	}
	said := voice.said()
	if len(said) != 1 || said[0].callerID != "room-7" {
		t.Errorf("expected a single notice to room-7, got %+v", said)
	}
}

func TestTimeoutMonitor_SweepOnce_NoticeFailureIsLoggedOnly(t *testing.T) {
	f := newFixture(5)
	voice := &mockVoice{block: true}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{Notify: true})
	f.pending("REQ-001", "room-7", "Mine")

	f.clock.Advance(3 * time.Hour)
	expired, err := m.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("expected notice failure to be swallowed, got %v", err)
	}
	m.Wait()

	if len(expired) != 1 {
		t.Errorf("expected REQ-001 expired, got %v", expired)
	}
}

func TestTimeoutMonitor_NoticesDisabled(t *testing.T) {
	f := newFixture(5)
	voice := &mockVoice{}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{Notify: false})
	f.pending("REQ-001", "room-7", "Mine")

	f.clock.Advance(3 * time.Hour)
	if _, err := m.SweepOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(voice.said()) != 0 {
		t.Error("expected no notices")
	}
}

func TestTimeoutMonitor_Run_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(5)
	voice := &mockVoice{}
	m := newTestMonitor(f, voice, TimeoutMonitorConfig{Notify: true})
	f.pending("REQ-001", "room-7", "Mine")
	f.clock.Advance(3 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for f.escRepo.get("REQ-001").Status != "expired" {
		select {
		case <-deadline:
			t.Fatal("escalation never expired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
