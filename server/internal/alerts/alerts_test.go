package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/phistack/phistack/pkg/phi"
	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/config"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func qubit(name string, health float64, events ...int) tracker.QubitResult {
	if events == nil {
		events = []int{}
	}
	return tracker.QubitResult{
		Name:  name,
		State: tracker.StateFor(health),
		Summary: phi.HealthSummary{
			HealthPercent:     health,
			VibratingCount:    int(health),
			TotalTimesteps:    100,
			PerturbedSteps:    100 - int(health),
			DecoherenceEvents: events,
		},
	}
}

func runOf(id string, qs ...tracker.QubitResult) *tracker.Run {
	return &tracker.Run{ID: id, Qubits: qs}
}

// newTestEngine returns an Engine with a controllable clock that records
// deliveries instead of posting them.
func newTestEngine(rules ...config.AlertRule) (*Engine, *time.Time, *recorder) {
	e := New(config.AlertsConfig{Rules: rules})
	now := baseTime
	e.now = func() time.Time { return now }
	rec := &recorder{}
	e.deliverF = rec.record
	return e, &now, rec
}

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) record(a *Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *a)
}

// --- evalCondition ---

func TestEvalCondition(t *testing.T) {
	q := qubit("Qubit 1", 42.5, 7, 30)
	tests := []struct {
		cond      string
		wantFire  bool
		wantValue float64
	}{
		{"health_pct < 50", true, 42.5},
		{"health_pct >= 50", false, 42.5},
		{"vibrating_count == 42", true, 42},
		{"perturbed_steps > 10", true, 58},
		{"decoherence_events >= 2", true, 2},
		{"first_decoherence < 10", true, 7},
		{"state == critical", true, 0},
		{"state != critical", false, 0},
		{"state > critical", false, 0},
		{"unknown_field > 1", false, 0},
		{"health_pct < abc", false, 0},
		{"health_pct <", false, 0},
		{"health_pct ~ 3", false, 42.5},
	}
	for _, tc := range tests {
		fires, v := evalCondition(tc.cond, &q)
		if fires != tc.wantFire || v != tc.wantValue {
			t.Errorf("evalCondition(%q) = (%v, %v), want (%v, %v)", tc.cond, fires, v, tc.wantFire, tc.wantValue)
		}
	}
}

func TestEvalCondition_FirstDecoherenceWithoutEvents(t *testing.T) {
	q := qubit("Qubit 1", 100)
	if fires, _ := evalCondition("first_decoherence < 1000", &q); fires {
		t.Error("first_decoherence fired for a qubit without decoherence events")
	}
}

// --- Engine ---

func TestEvaluate_NoRulesIsNoop(t *testing.T) {
	e, _, rec := newTestEngine()
	e.Evaluate(runOf("r1", qubit("Qubit 1", 0)))
	if len(e.Active()) != 0 || len(rec.alerts) != 0 {
		t.Error("engine without rules produced alerts")
	}
}

func TestEvaluate_FireThenResolve(t *testing.T) {
	e, now, _ := newTestEngine(config.AlertRule{Name: "low", Condition: "health_pct < 50", Severity: "critical"})

	e.Evaluate(runOf("r1", qubit("Qubit 1", 30), qubit("Qubit 2", 90)))
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("Active: got %d alerts, want 1", len(active))
	}
	a := active[0]
	if a.Qubit != "Qubit 1" || a.RunID != "r1" || a.State != "firing" || a.Severity != "critical" || a.Value != 30 {
		t.Errorf("alert = %+v", a)
	}
	if e.FiringCount() != 1 {
		t.Errorf("FiringCount = %d, want 1", e.FiringCount())
	}

	*now = now.Add(time.Minute)
	e.Evaluate(runOf("r2", qubit("Qubit 1", 95)))
	if e.FiringCount() != 0 {
		t.Errorf("FiringCount after recovery = %d, want 0", e.FiringCount())
	}
	active = e.Active()
	if len(active) != 1 || active[0].State != "resolved" || active[0].ResolvedAt == nil {
		t.Fatalf("Active after recovery = %+v, want one resolved alert", active)
	}

	// Resolved alerts drop out of Active after the recent window.
	*now = now.Add(2 * time.Hour)
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active after window: got %d, want 0", n)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	e, now, _ := newTestEngine(config.AlertRule{Name: "low", Condition: "health_pct < 50", Cooldown: 10 * time.Minute})

	e.Evaluate(runOf("r1", qubit("Qubit 1", 10)))
	first := e.Active()[0]

	*now = now.Add(5 * time.Minute)
	e.Evaluate(runOf("r2", qubit("Qubit 1", 10)))
	if got := e.Active()[0]; got.ID != first.ID {
		t.Errorf("alert re-fired within cooldown: %q vs %q", got.ID, first.ID)
	}

	*now = now.Add(10 * time.Minute)
	e.Evaluate(runOf("r3", qubit("Qubit 1", 10)))
	if got := e.Active()[0]; got.ID == first.ID || got.RunID != "r3" {
		t.Errorf("alert did not re-fire after cooldown: %+v", got)
	}
}

func TestEvaluate_DefaultSeverity(t *testing.T) {
	e, _, _ := newTestEngine(config.AlertRule{Name: "crit", Condition: "state == critical"})
	e.Evaluate(runOf("r1", qubit("Qubit 1", 10)))
	if sev := e.Active()[0].Severity; sev != "warning" {
		t.Errorf("Severity = %q, want warning", sev)
	}
}

func TestEvaluate_DeliversFireAndResolve(t *testing.T) {
	e, now, rec := newTestEngine(config.AlertRule{Name: "low", Condition: "health_pct < 50"})
	e.Evaluate(runOf("r1", qubit("Qubit 1", 10)))
	*now = now.Add(time.Minute)
	e.Evaluate(runOf("r2", qubit("Qubit 1", 99)))

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec.mu.Lock()
		n := len(rec.alerts)
		rec.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("deliveries: got %d, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- webhooks ---

func TestDeliver_PostsToConfiguredTargets(t *testing.T) {
	type hit struct {
		path string
		body map[string]interface{}
	}
	hits := make(chan hit, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]interface{}
		_ = json.Unmarshal(b, &m)
		hits <- hit{path: r.URL.Path, body: m}
	}))
	defer srv.Close()

	t.Setenv("SLACK_URL", srv.URL+"/slack")
	t.Setenv("HOOK_URL", srv.URL+"/http")
	e := New(config.AlertsConfig{Webhooks: []config.WebhookConfig{
		{Type: "slack", URLEnv: "SLACK_URL"},
		{Type: "http", URLEnv: "HOOK_URL"},
		{Type: "carrier-pigeon", URLEnv: "HOOK_URL"},
		{Type: "teams", URLEnv: "UNSET_URL"},
	}})

	e.deliver(&Alert{RuleName: "low", Qubit: "Qubit 1", Severity: "critical", Message: "m", State: "firing"})

	got := map[string]map[string]interface{}{}
	for i := 0; i < 2; i++ {
		select {
		case h := <-hits:
			got[h.path] = h.body
		case <-time.After(2 * time.Second):
			t.Fatalf("webhook %d not received", i)
		}
	}
	if got["/slack"]["text"] != "*[CRITICAL]* m" {
		t.Errorf("slack text = %v", got["/slack"]["text"])
	}
	alert, ok := got["/http"]["alert"].(map[string]interface{})
	if !ok || alert["qubit"] != "Qubit 1" {
		t.Errorf("http body = %v", got["/http"])
	}
}

func TestPayload_UnknownType(t *testing.T) {
	if _, err := payload("fax", &Alert{}); err == nil {
		t.Fatal("expected error for unknown webhook type")
	}
}

func TestPayload_ResolvedSlack(t *testing.T) {
	b, err := payload("slack", &Alert{RuleName: "low", Qubit: "Qubit 2", State: "resolved"})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var m map[string]string
	_ = json.Unmarshal(b, &m)
	if m["text"] != "*[RESOLVED]* low on Qubit 2" {
		t.Errorf("text = %q", m["text"])
	}
}
