package telemetry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoggerAddr(t *testing.T) {
	if l := NewLogger("run", "UTC", "", ""); l.addr != "" {
		t.Errorf("addr = %q, want empty without host and port", l.addr)
	}
	if l := NewLogger("run", "UTC", "collector", ""); l.addr != "" {
		t.Errorf("addr = %q, want empty without port", l.addr)
	}
	if l := NewLogger("run", "UTC", "collector", "514"); l.addr != "collector:514" {
		t.Errorf("addr = %q, want collector:514", l.addr)
	}
}

func TestLoggerTimezone(t *testing.T) {
	if l := NewLogger("run", "America/New_York", "", ""); l.loc.String() != "America/New_York" {
		t.Errorf("loc = %v, want America/New_York", l.loc)
	}
	// An unresolvable zone falls back to UTC rather than failing.
	if l := NewLogger("run", "Nowhere/Atlantis", "", ""); l.loc != time.UTC {
		t.Errorf("loc = %v, want UTC fallback", l.loc)
	}
}

func TestLoggerRemoteFailureIgnored(t *testing.T) {
	// Nothing listens here; delivery failures must stay silent.
	l := NewLogger("run", "UTC", "127.0.0.1", "1")
	l.Log("step %d ok", 42)
}

func TestTrackerDisabled(t *testing.T) {
	tr := NewTracker("", "", "proj", "run")
	if tr.Enabled() {
		t.Error("tracker with no endpoint reports enabled")
	}
	// Must be a silent no-op.
	tr.LogConfig(map[string]interface{}{"SEED": 1})
	tr.LogMetrics(0, map[string]float64{"loss": 1})
}

func TestTrackerPost(t *testing.T) {
	var events []trackerEvent
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev trackerEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("bad event body: %v", err)
		}
		events = append(events, ev)
		auths = append(auths, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL, "key123", "proj", "run9")
	if !tr.Enabled() {
		t.Fatal("tracker with endpoint and key reports disabled")
	}
	tr.LogConfig(map[string]interface{}{"SEED": float64(7)})
	tr.LogMetrics(12, map[string]float64{"loss": 0.5})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, a := range auths {
		if a != "Bearer key123" {
			t.Errorf("auth header %q", a)
		}
	}
	if events[0].Config["SEED"] != float64(7) || events[0].Step != nil {
		t.Errorf("config event: %+v", events[0])
	}
	if events[1].Step == nil || *events[1].Step != 12 || events[1].Values["loss"] != 0.5 {
		t.Errorf("metrics event: %+v", events[1])
	}
	if events[1].Project != "proj" || events[1].Run != "run9" {
		t.Errorf("event scope: %+v", events[1])
	}
}

func TestTrackerServerErrorIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL, "k", "p", "r")
	tr.LogMetrics(1, map[string]float64{"loss": 1})
}
