package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

const defaultWebhookTimeout = 10 * time.Second

// webhookAction posts the transition report as JSON to a URL.
type webhookAction struct {
	url     string
	method  string
	headers map[string]string
	client  *http.Client
	logger  zerolog.Logger
}

// webhookPayload is the wire form of a transition report.
type webhookPayload struct {
	Task       string    `json:"task"`
	Success    bool      `json:"success"`
	Conditions []string  `json:"conditions"`
	Thresholds []any     `json:"thresholds"`
	Values     []any     `json:"values"`
	Timestamp  time.Time `json:"timestamp"`
}

func webhookSpec() Spec {
	return Spec{
		New: newWebhookAction,
		Mandatory: []string{
			"url", // endpoint receiving the JSON report
		},
		Optional: []string{
			"method",  // HTTP method, default POST
			"headers", // map of header name to value
			"timeout", // request timeout in seconds, default 10
		},
	}
}

func newWebhookAction(cfg map[string]any) (Action, error) {
	a := &webhookAction{
		url:    stringOption(cfg, "url", ""),
		method: stringOption(cfg, "method", http.MethodPost),
		client: &http.Client{
			Timeout: time.Duration(intOption(cfg, "timeout", int(defaultWebhookTimeout/time.Second))) * time.Second,
		},
		logger: log.WithAction("webhook"),
	}

	if a.method != http.MethodPost && a.method != http.MethodPut {
		return nil, configErrorf("webhook", "method %q is not supported, expected POST or PUT", a.method)
	}

	if headers, ok := cfg["headers"].(map[string]any); ok {
		a.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				a.headers[k] = s
			}
		}
	}
	return a, nil
}

func (a *webhookAction) Process(ctx context.Context, report Report) error {
	body, err := json.Marshal(webhookPayload{
		Task:       report.Task,
		Success:    report.Success,
		Conditions: report.Conditions,
		Thresholds: report.Thresholds,
		Values:     report.Values,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, a.method, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", a.url, resp.StatusCode)
	}

	a.logger.Info().
		Str("task", report.Task).
		Bool("success", report.Success).
		Int("status", resp.StatusCode).
		Msg("webhook delivered")
	return nil
}
