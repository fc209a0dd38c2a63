package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Qubit      string     `json:"qubit"`
	RunID      string     `json:"run_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against each qubit of incoming runs and
// delivers webhook notifications when rules fire or resolve. Alerts are keyed
// by rule and qubit name, so consecutive live runs fire and resolve the same
// alert.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:qubit"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	deliverF func(*Alert)
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	e.deliverF = e.deliver
	return e
}

// Evaluate tests all configured rules against every qubit of run.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(run *tracker.Run) {
	if len(e.rules) == 0 || run == nil {
		return
	}
	for i := range run.Qubits {
		e.evaluateQubit(run.ID, &run.Qubits[i])
	}
}

func (e *Engine) evaluateQubit(runID string, q *tracker.QubitResult) {
	now := e.now()
	for _, rule := range e.rules {
		key := rule.Name + ":" + q.Name
		fires, value := evalCondition(rule.Condition, q)

		e.mu.Lock()
		var out *Alert
		switch {
		case fires:
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[key]) <= cooldown {
				break
			}
			sev := rule.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:       fmt.Sprintf("%s:%s:%d", rule.Name, q.Name, now.UnixNano()),
				RuleName: rule.Name,
				Qubit:    q.Name,
				RunID:    runID,
				Severity: sev,
				Value:    value,
				Message: fmt.Sprintf("[%s] %s fired on %s (run %s): %s = %.2f",
					sev, rule.Name, q.Name, runID, rule.Condition, value),
				FiredAt: now,
				State:   "firing",
			}
			e.active[key] = a
			e.lastFire[key] = now
			cp := *a
			out = &cp
			slog.Warn("alert fired",
				"rule", rule.Name,
				"qubit", q.Name,
				"run", runID,
				"value", value,
				"severity", sev,
			)

		default:
			a, ok := e.active[key]
			if !ok {
				break
			}
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			out = &cp
			slog.Info("alert resolved", "rule", rule.Name, "qubit", q.Name, "run", runID)
		}
		e.mu.Unlock()

		if out != nil {
			go e.deliverF(out)
		}
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
