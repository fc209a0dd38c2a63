package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged and not retried.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		body, err := payload(wh.Type, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}

		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"qubit", a.Qubit,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type,
			"rule", a.RuleName,
			"state", a.State,
		)
	}
}

// payload renders a as the JSON body expected by the given webhook type.
func payload(typ string, a *Alert) ([]byte, error) {
	switch typ {
	case "slack":
		text := fmt.Sprintf("*%s* %s", severityLabel(a.Severity), a.Message)
		if a.State == "resolved" {
			text = fmt.Sprintf("*[RESOLVED]* %s on %s", a.RuleName, a.Qubit)
		}
		return json.Marshal(map[string]string{"text": text})

	case "teams":
		return json.Marshal(map[string]interface{}{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity, a.State),
			"summary":    a.RuleName,
			"title":      fmt.Sprintf("Qubit health alert: %s on %s", a.RuleName, a.Qubit),
			"text":       a.Message,
		})

	case "pagerduty", "http":
		return json.Marshal(map[string]interface{}{"alert": a})

	default:
		return nil, fmt.Errorf("unknown webhook type %q", typ)
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(sev, state string) string {
	if state == "resolved" {
		return "2EB67D"
	}
	switch sev {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
