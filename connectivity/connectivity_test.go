package connectivity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/realmorph/datakit/logger"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func TestMonitor_Transitions(t *testing.T) {
	m := NewMonitor(logger.Nop(), true)
	defer m.Close()

	if !m.Online() {
		t.Fatal("expected initial online state")
	}

	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOnline(false)
	if ev := waitEvent(t, events); ev != EventOffline {
		t.Errorf("expected offline event, got %s", ev)
	}
	if m.Online() {
		t.Error("expected offline state")
	}

	m.SetOnline(true)
	if ev := waitEvent(t, events); ev != EventOnline {
		t.Errorf("expected online event, got %s", ev)
	}
}

func TestMonitor_NoEventOnSameState(t *testing.T) {
	m := NewMonitor(logger.Nop(), true)
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	m.SetOnline(true)

	select {
	case ev := <-events:
		t.Errorf("unexpected event %s for unchanged state", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_UnsubscribedReceiverStopsGettingEvents(t *testing.T) {
	m := NewMonitor(logger.Nop(), true)
	defer m.Close()

	events, cancel := m.Subscribe()
	cancel()

	m.SetOnline(false)

	// channel is closed on cancel, so a receive yields the zero value
	select {
	case ev, ok := <-events:
		if ok {
			t.Errorf("expected closed channel, got event %s", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel close after cancel")
	}
}

func TestMonitor_SubscribeCancelRaceWithSetOnline(t *testing.T) {
	m := NewMonitor(logger.Nop(), true)
	defer m.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			events, cancel := m.Subscribe()
			go func() {
				for range events {
				}
			}()
			cancel()
		}
	}()

	// a publish landing between a subscribe and its cancel must not panic
	online := false
	for {
		select {
		case <-done:
			return
		default:
			m.SetOnline(online)
			online = !online
		}
	}
}

func TestProber_FlipsMonitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(logger.Nop(), false)
	defer m.Close()

	events, cancel := m.Subscribe()
	defer cancel()

	p, err := NewProber(logger.Nop(), m, &ProberConfig{URL: srv.URL, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewProber failed: %v", err)
	}
	p.Start()
	defer p.Stop()

	if ev := waitEvent(t, events); ev != EventOnline {
		t.Errorf("expected online event after successful probe, got %s", ev)
	}

	// failing probe flips it back offline
	srv.Close()
	if ev := waitEvent(t, events); ev != EventOffline {
		t.Errorf("expected offline event after failed probe, got %s", ev)
	}
}

func TestProberConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ProberConfig
		wantErr bool
	}{
		{"valid", &ProberConfig{URL: "http://x", Interval: time.Second, Timeout: time.Second}, false},
		{"missing url", &ProberConfig{Interval: time.Second, Timeout: time.Second}, true},
		{"zero interval", &ProberConfig{URL: "http://x", Timeout: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
