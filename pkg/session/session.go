// Package session provides session identifiers for simulation runs,
// either from an external webhook or generated locally.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"simulator/pkg/logx"
)

const (
	initTimeout     = 10 * time.Second
	validateTimeout = 5 * time.Second
)

// Manager hands out session identifiers. When a webhook URL is set the
// id comes from a GET returning {"session_id": "..."}; any failure
// falls back to a locally generated UUID so a run never blocks on the
// webhook being up.
type Manager struct {
	webhookURL string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewManager creates a manager. An empty webhookURL means local UUIDs only.
func NewManager(webhookURL string) *Manager {
	return &Manager{
		webhookURL: webhookURL,
		httpClient: &http.Client{},
		logger:     logx.NewLogger("session"),
	}
}

// InitializeSession returns a new session id.
func (m *Manager) InitializeSession(ctx context.Context) string {
	if m.webhookURL == "" {
		id := uuid.New().String()
		m.logger.Debug("generated session ID (no webhook): %s", id)
		return id
	}

	id, err := m.fetchSessionID(ctx, initTimeout)
	if err != nil {
		m.logger.Warn("webhook session init failed, using local ID: %v", err)
		return uuid.New().String()
	}

	m.logger.Debug("retrieved session ID from webhook: %s", id)
	return id
}

// ValidateWebhook checks the webhook is reachable and returns the
// expected payload shape. No configured webhook is valid.
func (m *Manager) ValidateWebhook(ctx context.Context) error {
	if m.webhookURL == "" {
		return nil
	}
	if _, err := m.fetchSessionID(ctx, validateTimeout); err != nil {
		return fmt.Errorf("webhook validation failed: %w", err)
	}
	return nil
}

func (m *Manager) fetchSessionID(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.webhookURL, nil)
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("webhook response missing session_id field")
	}

	return payload.SessionID, nil
}
