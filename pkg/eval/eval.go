// Package eval scores completed conversations with a single JSON-mode
// completion per conversation.
package eval

import (
	"context"
	"fmt"
	"strings"

	"simulator/pkg/engine"
	"simulator/pkg/llm"
	"simulator/pkg/logx"
	"simulator/pkg/prompts"
)

// EvaluationStatus reports whether scoring itself succeeded.
type EvaluationStatus string

const (
	// EvalSuccess means the evaluation request parsed into a verdict.
	EvalSuccess EvaluationStatus = "success"
	// EvalFailed means the verdict is a fallback after a request or JSON failure.
	EvalFailed EvaluationStatus = "failed"
)

// Valid score bounds. Anything outside is coerced to ScoreMin.
const (
	ScoreMin = 1
	ScoreMax = 3
)

// Placeholder comments for missing or broken evaluator output.
const (
	commentMissing  = "Комментарий отсутствует"
	commentEmpty    = "Комментарий не предоставлен"
	commentBadScore = "Некорректная оценка от системы оценки. Оригинальный ответ: %s"
)

// Result is the verdict for one conversation.
type Result struct {
	SessionID        string           `json:"session_id"`
	Scenario         string           `json:"scenario"`
	Score            int              `json:"score"`
	Comment          string           `json:"comment"`
	EvaluationStatus EvaluationStatus `json:"evaluation_status"`
	RawResponse      string           `json:"raw_response,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Evaluator scores conversations through the shared request client.
type Evaluator struct {
	requester *llm.Requester
	prompts   *prompts.Store
	logger    *logx.Logger
}

// New creates an evaluator.
func New(requester *llm.Requester, promptStore *prompts.Store) *Evaluator {
	return &Evaluator{
		requester: requester,
		prompts:   promptStore,
		logger:    logx.NewLogger("eval"),
	}
}

// Evaluate scores one conversation. Request failures and unparseable
// evaluator output never propagate as errors; they come back as a
// score-1 fallback verdict with the failure embedded in the comment.
func (e *Evaluator) Evaluate(ctx context.Context, conv engine.ConversationResult) Result {
	e.logger.Info("evaluating conversation: session=%s scenario=%s turns=%d",
		conv.SessionID, conv.Scenario, conv.TotalTurns)

	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(e.prompts.Template(prompts.EvaluatorSystem)),
		llm.NewUserMessage(FormatTranscript(conv.Turns)),
	}

	result, err := e.requester.JSONCompletion(ctx, llm.CompletionRequest{
		Messages:    messages,
		SessionID:   conv.SessionID,
		Temperature: llm.TemperatureEvaluation,
	})
	if err != nil {
		e.logger.Error("evaluation request failed: session=%s: %v", conv.SessionID, err)
		return Result{
			SessionID:        conv.SessionID,
			Scenario:         conv.Scenario,
			Score:            ScoreMin,
			Comment:          fmt.Sprintf("Ошибка оценки: %s", err.Error()),
			EvaluationStatus: EvalFailed,
			Error:            err.Error(),
		}
	}

	if result.Invalid {
		e.logger.Error("evaluator returned invalid JSON: session=%s", conv.SessionID)
		return Result{
			SessionID:        conv.SessionID,
			Scenario:         conv.Scenario,
			Score:            ScoreMin,
			Comment:          "invalid evaluator output",
			EvaluationStatus: EvalFailed,
			RawResponse:      result.Raw,
			Error:            "invalid_json",
		}
	}

	score, comment := parseVerdict(result.Data)
	e.logger.Info("evaluation complete: session=%s score=%d", conv.SessionID, score)

	return Result{
		SessionID:        conv.SessionID,
		Scenario:         conv.Scenario,
		Score:            score,
		Comment:          comment,
		EvaluationStatus: EvalSuccess,
		RawResponse:      result.Raw,
	}
}

// EvaluateBatch scores conversations strictly sequentially. Scoring is
// never the throughput bottleneck and sequential order keeps verdicts
// aligned with their conversations.
func (e *Evaluator) EvaluateBatch(ctx context.Context, convs []engine.ConversationResult) []Result {
	e.logger.Info("starting batch evaluation of %d conversations", len(convs))

	results := make([]Result, 0, len(convs))
	for _, conv := range convs {
		results = append(results, e.Evaluate(ctx, conv))
	}
	return results
}

// FormatTranscript renders turns as a single evaluation document with
// explicit start and end markers so the scoring model cannot confuse
// transcript content with instructions.
func FormatTranscript(turns []engine.Turn) string {
	var b strings.Builder
	b.WriteString("=== РАЗГОВОР ДЛЯ ОЦЕНКИ ===\n\n")
	for _, turn := range turns {
		speaker := "КЛИЕНТ"
		if turn.Speaker == engine.SpeakerAgent {
			speaker = "АГЕНТ"
		}
		fmt.Fprintf(&b, "Ход %d - %s: %s\n\n", turn.Index, speaker, turn.Content)
	}
	b.WriteString("=== КОНЕЦ РАЗГОВОРА ===")
	return b.String()
}

// parseVerdict validates the evaluator's JSON object. An out-of-range
// or non-integer score is coerced to ScoreMin with a diagnostic comment
// rather than dropped.
func parseVerdict(data map[string]any) (int, string) {
	comment := ""
	switch c := data["comment"].(type) {
	case string:
		comment = c
	case nil:
		comment = commentMissing
	default:
		comment = fmt.Sprintf("%v", c)
	}

	score, ok := intScore(data["score"])
	if !ok || score < ScoreMin || score > ScoreMax {
		return ScoreMin, fmt.Sprintf(commentBadScore, comment)
	}

	if strings.TrimSpace(comment) == "" {
		comment = commentEmpty
	}
	return score, comment
}

// intScore accepts only integral score values. JSON numbers arrive as
// float64; a fractional value is not a valid score.
func intScore(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
