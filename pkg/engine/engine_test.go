package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simulator/pkg/llm"
	"simulator/pkg/prompts"
	"simulator/pkg/session"
	"simulator/pkg/testkit"
	"simulator/pkg/toolsim"
)

func newEngine(t *testing.T, client llm.Client, opts Options) *Engine {
	t.Helper()
	return New(llm.NewRequester(client), prompts.NewStore(t.TempDir()), session.NewManager(""), opts)
}

func TestRunAgentEndsCall(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Reply("Здравствуйте! Чем могу помочь?"),
		testkit.Reply("Хочу заказать пиццу."),
		testkit.Reply("Заказ оформлен. end_call"),
	)
	e := newEngine(t, client, Options{MaxTurns: 10, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{Name: "order"})

	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Turns, 3)
	assert.Equal(t, result.TotalTurns, len(result.Turns))
	assert.Equal(t, SpeakerAgent, result.Turns[0].Speaker)
	assert.Equal(t, SpeakerClient, result.Turns[1].Speaker)
	assert.Equal(t, SpeakerAgent, result.Turns[2].Speaker)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "order", result.Scenario)
}

func TestRunClientClosingPhrase(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Reply("Здравствуйте!"),
		testkit.Reply("Спасибо, до свидания!"),
	)
	e := newEngine(t, client, Options{MaxTurns: 10, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{Name: "quick"})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Len(t, result.Turns, 2)
}

func TestRunTurnIndexesArePerEmission(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Reply("реплика агента"),
		testkit.Reply("ответ клиента"),
		testkit.Reply("end_call"),
	)
	e := newEngine(t, client, Options{MaxTurns: 5, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{Name: "idx"})

	for i, turn := range result.Turns {
		assert.Equal(t, i+1, turn.Index)
	}
}

func TestRunMaxTurnsStopsBeforeClientTurn(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Reply("продолжаем разговор"))
	e := newEngine(t, client, Options{MaxTurns: 2, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{Name: "budget"})

	assert.Equal(t, StatusCompleted, result.Status)
	// Rounds: agent+client, then final agent only.
	assert.Len(t, result.Turns, 3)
	assert.Equal(t, SpeakerAgent, result.Turns[2].Speaker)
}

func TestRunTimeoutIsCompleted(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Reply("всё ещё разговариваем"))
	e := newEngine(t, client, Options{MaxTurns: 100, Timeout: time.Nanosecond})

	result := e.Run(context.Background(), Scenario{Name: "slow"})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.Error)
}

func TestRunRequestFailureIsFailed(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Reply("Здравствуйте!"),
		testkit.Fail(errors.New("connection refused")),
	)
	e := newEngine(t, client, Options{MaxTurns: 10, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{Name: "broken"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "connection refused")
	// The partial transcript survives.
	assert.Len(t, result.Turns, 1)
	assert.Positive(t, result.DurationSeconds)
}

func TestRunHistoryRoles(t *testing.T) {
	client := testkit.NewScriptedClient(
		testkit.Reply("агент 1"),
		testkit.Reply("клиент 1"),
		testkit.Reply("агент 2 end_call"),
	)
	e := newEngine(t, client, Options{MaxTurns: 10, Timeout: time.Minute})

	e.Run(context.Background(), Scenario{Name: "roles"})

	reqs := client.Requests()
	require.Len(t, reqs, 3)

	// Second agent call: system, opening, own reply as assistant, client as user.
	agentReq := reqs[2].Messages
	require.Len(t, agentReq, 4)
	assert.Equal(t, llm.RoleAssistant, agentReq[2].Role)
	assert.Equal(t, "агент 1", agentReq[2].Content)
	assert.Equal(t, llm.RoleUser, agentReq[3].Role)
	assert.Equal(t, "клиент 1", agentReq[3].Content)

	// Client call: system, agent reply as user.
	clientReq := reqs[1].Messages
	require.Len(t, clientReq, 2)
	assert.Equal(t, llm.RoleUser, clientReq[1].Role)
}

func TestRunSeedAndSessionPropagation(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Reply("end_call"))
	e := newEngine(t, client, Options{MaxTurns: 3, Timeout: time.Minute})

	result := e.Run(context.Background(), Scenario{
		Name:      "seeded",
		Variables: map[string]string{"SEED": "1234"},
	})

	reqs := client.Requests()
	require.NotEmpty(t, reqs)
	require.NotNil(t, reqs[0].Seed)
	assert.Equal(t, int64(1234), *reqs[0].Seed)
	assert.Equal(t, result.SessionID, reqs[0].SessionID)
	assert.InDelta(t, llm.TemperatureDialogue, reqs[0].Temperature, 0.001)
}

func TestRunToolReferenceInAgentPrompt(t *testing.T) {
	client := testkit.NewScriptedClient(testkit.Reply("end_call"))
	e := newEngine(t, client, Options{
		MaxTurns: 3,
		Timeout:  time.Minute,
		Tools:    toolsim.NewEmulatorWithSeed(1),
	})

	e.Run(context.Background(), Scenario{Name: "tools"})

	reqs := client.Requests()
	require.NotEmpty(t, reqs)
	system := reqs[0].Messages[0].Content
	assert.Contains(t, system, "Доступные инструменты")
	assert.Contains(t, system, "search_menu")
	assert.Contains(t, system, "create_order")
}
