package engine

import (
	"time"
)

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	// SpeakerAgent is the simulated call center agent.
	SpeakerAgent Speaker = "agent"
	// SpeakerClient is the simulated client.
	SpeakerClient Speaker = "client"
)

// Status is the terminal state of a conversation run.
type Status string

const (
	// StatusCompleted covers every normal termination path: explicit end
	// directive, client closing language, turn budget, wall-clock budget.
	StatusCompleted Status = "completed"
	// StatusFailed means an unrecoverable request failure cut the run short.
	StatusFailed Status = "failed"
)

// Scenario describes one conversation to simulate.
type Scenario struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Turn is one produced utterance. Indexes are 1-based and increment
// once per emission, agent and client alike.
type Turn struct {
	Index     int       `json:"turn"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationResult is the immutable outcome of one scenario run.
type ConversationResult struct {
	SessionID       string    `json:"session_id"`
	Scenario        string    `json:"scenario"`
	Status          Status    `json:"status"`
	Turns           []Turn    `json:"conversation_history"`
	TotalTurns      int       `json:"total_turns"`
	DurationSeconds float64   `json:"duration_seconds"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Error           string    `json:"error,omitempty"`
}
