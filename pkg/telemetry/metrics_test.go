package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	handler := m.Handler()
	if handler == nil {
		t.Fatal("Expected a metrics handler")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	// None of these may panic on the no-op instance.
	m.Observe(Envelope{Event: lifecycle.Event{Type: lifecycle.EventTypeOperationStarted}})
	m.RecordError("hook_failed")
	m.Serve()

	if m.Handler() != nil {
		t.Error("Expected nil handler when metrics are disabled")
	}
}

func TestMetricsObserveOperationEvents(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "hookmill"})

	m.Observe(Envelope{Event: lifecycle.Event{
		Type:      lifecycle.EventTypeOperationStarted,
		Operation: lifecycle.OperationInstall,
	}})
	m.Observe(Envelope{Event: lifecycle.Event{
		Type:      lifecycle.EventTypeOperationCompleted,
		Operation: lifecycle.OperationInstall,
		Elapsed:   3 * time.Second,
	}})
	m.Observe(Envelope{Event: lifecycle.Event{
		Type:      lifecycle.EventTypeOperationFailed,
		Operation: lifecycle.OperationDelete,
		Elapsed:   time.Second,
	}})

	body := scrape(t, m)

	checks := []string{
		`hookmill_operations_started_total{operation="install"} 1`,
		`hookmill_operations_completed_total{operation="install",status="succeeded"} 1`,
		`hookmill_operations_completed_total{operation="delete",status="failed"} 1`,
		`hookmill_active_operations -1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("Expected exposition to contain %q", want)
		}
	}
}

func TestMetricsObserveHookEvents(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "hookmill"})

	m.Observe(Envelope{Event: lifecycle.Event{
		Type:    lifecycle.EventTypeHookReady,
		Phase:   lifecycle.PhasePreUpgrade,
		Hook:    "db-migrate",
		Elapsed: 2 * time.Second,
	}})
	m.Observe(Envelope{Event: lifecycle.Event{
		Type:    lifecycle.EventTypeHookFailed,
		Phase:   lifecycle.PhasePreUpgrade,
		Hook:    "bad-hook",
		Elapsed: time.Second,
	}})
	m.Observe(Envelope{Event: lifecycle.Event{
		Type:    lifecycle.EventTypePhaseFailed,
		Phase:   lifecycle.PhasePreUpgrade,
		Elapsed: 3 * time.Second,
	}})

	body := scrape(t, m)

	checks := []string{
		`hookmill_hooks_executed_total{outcome="ready",phase="pre-upgrade"} 1`,
		`hookmill_hooks_executed_total{outcome="failed",phase="pre-upgrade"} 1`,
	}
	for _, want := range checks {
		if !strings.Contains(body, want) {
			t.Errorf("Expected exposition to contain %q", want)
		}
	}
}

func TestMetricsRecordError(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "hookmill"})

	m.RecordError("phase_aborted")
	m.RecordError("phase_aborted")
	m.RecordError("")

	body := scrape(t, m)
	if !strings.Contains(body, `hookmill_errors_total{code="phase_aborted"} 2`) {
		t.Errorf("Expected error counter at 2, got body:\n%s", body)
	}
}
