package batch

import (
	"errors"
	"time"

	"simulator/pkg/engine"
	"simulator/pkg/eval"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	// StatusPending means the job is created but not yet run.
	StatusPending Status = "pending"
	// StatusRunning means scenarios are being processed.
	StatusRunning Status = "running"
	// StatusCompleted means every scenario produced a record.
	StatusCompleted Status = "completed"
	// StatusFailed means the batch itself broke before producing records.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was cancelled while running.
	StatusCancelled Status = "cancelled"
)

// Control errors surfaced to the scheduler's caller. Data-path failures
// never appear here; they are encoded into records instead.
var (
	ErrJobNotFound   = errors.New("batch job not found")
	ErrJobNotPending = errors.New("batch job is not in pending status")
)

// Record is the per-scenario outcome: conversation metadata merged with
// the evaluation verdict. Failed scenarios still get a record, with
// score 1 and a diagnostic comment.
type Record struct {
	ScenarioIndex    int                   `json:"scenario_index"`
	Scenario         string                `json:"scenario"`
	SessionID        string                `json:"session_id,omitempty"`
	Status           engine.Status         `json:"status"`
	TotalTurns       int                   `json:"total_turns"`
	DurationSeconds  float64               `json:"duration_seconds"`
	Score            int                   `json:"score"`
	Comment          string                `json:"comment"`
	EvaluationStatus eval.EvaluationStatus `json:"evaluation_status,omitempty"`
	StartTime        time.Time             `json:"start_time,omitempty"`
	EndTime          time.Time             `json:"end_time,omitempty"`
	Error            string                `json:"error,omitempty"`
	Turns            []engine.Turn         `json:"conversation_history,omitempty"`
}

// Job tracks one batch through its lifecycle. Fields are guarded by the
// owning Store's lock; callers only see snapshots.
type Job struct {
	BatchID            string            `json:"batch_id"`
	Scenarios          []engine.Scenario `json:"-"`
	Status             Status            `json:"status"`
	CreatedAt          time.Time         `json:"created_at"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	TotalScenarios     int               `json:"total_scenarios"`
	CompletedScenarios int               `json:"completed_scenarios"`
	FailedScenarios    int               `json:"failed_scenarios"`
	ProgressPercentage float64           `json:"progress"`
	Records            []Record          `json:"results,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
}

// Result is the final outcome of a batch run. Records are ordered by
// scenario index regardless of completion order.
type Result struct {
	BatchID             string   `json:"batch_id"`
	Status              Status   `json:"status"`
	TotalScenarios      int      `json:"total_scenarios"`
	SuccessfulScenarios int      `json:"successful_scenarios"`
	FailedScenarios     int      `json:"failed_scenarios"`
	DurationSeconds     float64  `json:"duration_seconds"`
	Records             []Record `json:"results"`
}

// ProgressFunc is invoked after each scenario completes, in completion
// order, with a monotonically increasing completed count.
type ProgressFunc func(batchID string, completed int)
