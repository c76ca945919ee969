// Package metrics provides usage and cost recording for completion calls.
package metrics

import (
	"time"
)

// Recorder records metrics for completion operations.
type Recorder interface {
	// ObserveRequest records a completed request.
	ObserveRequest(
		model, sessionID string,
		promptTokens, completionTokens int,
		cost float64,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// Nop returns a recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing.
func (n *NoopRecorder) ObserveRequest(
	_, _ string,
	_, _ int,
	_ float64,
	_ bool,
	_ string,
	_ time.Duration,
) {
}

// MultiRecorder fans observations out to several recorders.
type MultiRecorder []Recorder

// ObserveRequest forwards the observation to every recorder.
func (m MultiRecorder) ObserveRequest(
	model, sessionID string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	for _, r := range m {
		r.ObserveRequest(model, sessionID, promptTokens, completionTokens, cost, success, errorType, duration)
	}
}
