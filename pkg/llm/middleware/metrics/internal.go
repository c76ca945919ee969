package metrics

import (
	"sync"
	"time"
)

// InternalRecorder aggregates usage in memory, keyed by session. It
// backs the cost reporting endpoint without an external metrics store.
type InternalRecorder struct {
	sessions map[string]*SessionUsage
	mu       sync.RWMutex
}

// SessionUsage is the aggregated usage for one simulation session.
type SessionUsage struct {
	SessionID        string    `json:"session_id"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewInternalRecorder creates an empty in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{sessions: make(map[string]*SessionUsage)}
}

// ObserveRequest records a completed request. Failed requests and
// requests with no session attribution are skipped.
func (r *InternalRecorder) ObserveRequest(
	_, sessionID string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	_ string,
	_ time.Duration,
) {
	if !success || sessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		session = &SessionUsage{SessionID: sessionID}
		r.sessions[sessionID] = session
	}

	session.PromptTokens += int64(promptTokens)
	session.CompletionTokens += int64(completionTokens)
	session.TotalTokens = session.PromptTokens + session.CompletionTokens
	session.TotalCostUSD += cost
	session.RequestCount++
	session.LastUpdated = time.Now()
}

// SessionUsage returns a copy of the usage for one session, or nil.
func (r *InternalRecorder) SessionUsage(sessionID string) *SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return nil
	}
	cp := *session
	return &cp
}

// AllSessionUsage returns a copy of the usage for every session.
func (r *InternalRecorder) AllSessionUsage() map[string]*SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*SessionUsage, len(r.sessions))
	for id, session := range r.sessions {
		cp := *session
		result[id] = &cp
	}
	return result
}

// Totals sums usage across all sessions.
func (r *InternalRecorder) Totals() SessionUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total SessionUsage
	for _, session := range r.sessions {
		total.PromptTokens += session.PromptTokens
		total.CompletionTokens += session.CompletionTokens
		total.RequestCount += session.RequestCount
		total.TotalCostUSD += session.TotalCostUSD
		if session.LastUpdated.After(total.LastUpdated) {
			total.LastUpdated = session.LastUpdated
		}
	}
	total.TotalTokens = total.PromptTokens + total.CompletionTokens
	return total
}

// Reset clears all recorded usage.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*SessionUsage)
}
