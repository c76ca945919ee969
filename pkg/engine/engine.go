// Package engine runs simulated conversations between an agent model
// and a client model over a shared request client.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"simulator/pkg/llm"
	"simulator/pkg/logx"
	"simulator/pkg/prompts"
	"simulator/pkg/session"
	"simulator/pkg/toolsim"
)

// openingInstruction seeds the agent's history so it speaks first.
const openingInstruction = "Начните разговор с клиентом."

// endCallDirective in an agent reply terminates the conversation.
const endCallDirective = "end_call"

// closingPhrases end the conversation when the client utters one,
// matched case-insensitively as substrings.
var closingPhrases = []string{"до свидания", "спасибо", "всё", "хватит", "конец"}

// Options bound a single conversation run. A non-nil Tools emulator
// exposes the fake business API to the agent via its system prompt.
type Options struct {
	MaxTurns int
	Timeout  time.Duration
	Tools    *toolsim.Emulator
}

// Engine drives the agent/client turn loop for one scenario at a time.
// It is safe for concurrent use; all per-run state lives on the stack.
type Engine struct {
	requester *llm.Requester
	prompts   *prompts.Store
	sessions  *session.Manager
	opts      Options
	logger    *logx.Logger
}

// New creates a conversation engine.
func New(requester *llm.Requester, promptStore *prompts.Store, sessions *session.Manager, opts Options) *Engine {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 30
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	return &Engine{
		requester: requester,
		prompts:   promptStore,
		sessions:  sessions,
		opts:      opts,
		logger:    logx.NewLogger("engine"),
	}
}

// Run simulates one complete conversation. Timeout and turn-budget
// exhaustion are normal terminations; only an exhausted request failure
// produces a failed result, and the partial transcript is kept either way.
func (e *Engine) Run(ctx context.Context, scenario Scenario) ConversationResult {
	sessionID := e.sessions.InitializeSession(ctx)
	start := time.Now()

	variables := make(map[string]string, len(scenario.Variables)+1)
	for k, v := range scenario.Variables {
		variables[k] = v
	}
	variables["session_id"] = sessionID

	var seed *int64
	if raw, ok := variables["SEED"]; ok {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			seed = &parsed
		}
	}

	agentSystem := e.prompts.Format(prompts.AgentSystem, variables)
	if e.opts.Tools != nil {
		agentSystem += "\n\n" + toolReference(e.opts.Tools)
	}
	agentHistory := []llm.CompletionMessage{
		llm.NewSystemMessage(agentSystem),
		llm.NewUserMessage(openingInstruction),
	}
	clientHistory := []llm.CompletionMessage{
		llm.NewSystemMessage(e.prompts.Format(prompts.ClientSystem, variables)),
	}

	e.logger.Info("starting conversation: session=%s scenario=%s max_turns=%d timeout=%s",
		sessionID, scenario.Name, e.opts.MaxTurns, e.opts.Timeout)

	var turns []Turn
	deadline := start.Add(e.opts.Timeout)

	finish := func(status Status, errMsg string) ConversationResult {
		end := time.Now()
		e.logger.Info("conversation finished: session=%s status=%s turns=%d duration=%.1fs",
			sessionID, status, len(turns), end.Sub(start).Seconds())
		return ConversationResult{
			SessionID:       sessionID,
			Scenario:        scenario.Name,
			Status:          status,
			Turns:           turns,
			TotalTurns:      len(turns),
			DurationSeconds: end.Sub(start).Seconds(),
			StartTime:       start,
			EndTime:         end,
			Error:           errMsg,
		}
	}

	record := func(speaker Speaker, content string) {
		turns = append(turns, Turn{
			Index:     len(turns) + 1,
			Speaker:   speaker,
			Content:   content,
			Timestamp: time.Now(),
		})
		e.logger.Debug("turn %d [%s] session=%s: %s", len(turns), speaker, sessionID, content)
	}

	complete := func(history []llm.CompletionMessage) (string, error) {
		req := llm.CompletionRequest{
			Messages:    history,
			SessionID:   sessionID,
			Temperature: llm.TemperatureDialogue,
			Seed:        seed,
		}
		resp, err := e.requester.ChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	for round := 1; round <= e.opts.MaxTurns; round++ {
		if time.Now().After(deadline) {
			e.logger.Warn("conversation timeout: session=%s after %s", sessionID, e.opts.Timeout)
			return finish(StatusCompleted, "")
		}

		agentReply, err := complete(agentHistory)
		if err != nil {
			e.logger.Error("agent turn failed: session=%s: %v", sessionID, err)
			return finish(StatusFailed, err.Error())
		}
		record(SpeakerAgent, agentReply)
		agentHistory = append(agentHistory, llm.NewAssistantMessage(agentReply))

		if strings.Contains(strings.ToLower(agentReply), endCallDirective) {
			e.logger.Info("agent ended call: session=%s round=%d", sessionID, round)
			return finish(StatusCompleted, "")
		}

		clientHistory = append(clientHistory, llm.NewUserMessage(agentReply))

		if round >= e.opts.MaxTurns {
			return finish(StatusCompleted, "")
		}

		clientReply, err := complete(clientHistory)
		if err != nil {
			e.logger.Error("client turn failed: session=%s: %v", sessionID, err)
			return finish(StatusFailed, err.Error())
		}
		record(SpeakerClient, clientReply)

		agentHistory = append(agentHistory, llm.NewUserMessage(clientReply))
		clientHistory = append(clientHistory, llm.NewAssistantMessage(clientReply))

		if containsClosingPhrase(clientReply) {
			e.logger.Info("client ended conversation: session=%s round=%d", sessionID, round)
			return finish(StatusCompleted, "")
		}
	}

	return finish(StatusCompleted, "")
}

// toolReference renders the emulator's tool list for the agent's
// system prompt.
func toolReference(emu *toolsim.Emulator) string {
	var b strings.Builder
	b.WriteString("Доступные инструменты:\n")
	for _, tool := range emu.AvailableTools() {
		fmt.Fprintf(&b, "- %s(%s): %s\n", tool.Name, strings.Join(tool.Parameters, ", "), tool.Description)
	}
	return strings.TrimSpace(b.String())
}

func containsClosingPhrase(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
