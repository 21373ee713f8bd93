package agent

import (
	"context"
	"encoding/json"
	"errors"
	mathrand "math/rand"
	"strings"
	"testing"
	"time"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/provider"
	"github.com/kokoro-ai/kokoro/provider/providertest"
	"github.com/kokoro-ai/kokoro/tools"
)

func newTestAgent(t *testing.T, mock *providertest.MockProvider) (*Agent, *memory.MemStore) {
	t.Helper()

	store := memory.NewMemStore()
	a := New(Config{
		Persona: "You are a test companion.",
		Model:   "test-model",
	}, mock, store, WithRand(mathrand.New(mathrand.NewSource(1))))
	return a, store
}

func TestRunReturnsContent(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{
			Content:      "hello there",
			FinishReason: provider.FinishReasonStop,
			Raw:          []byte(`{"ok":true}`),
		}),
	}
	a, _ := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "hi", RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content != "hello there" {
		t.Errorf("content %q", res.Content)
	}
	if string(res.Raw) != `{"ok":true}` {
		t.Errorf("raw %q", res.Raw)
	}

	history := a.GetHistory()
	if len(history) != 2 {
		t.Fatalf("history %d messages, want user+assistant", len(history))
	}
	if history[0].Role != provider.MessageRoleUser || history[1].Role != provider.MessageRoleAssistant {
		t.Errorf("history roles: %+v", history)
	}
}

func TestRunSendsSystemPromptAndTools(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{Content: "ok"}),
	}
	a, store := newTestAgent(t, mock)

	if _, err := store.Store(context.Background(), "loves stargazing", memory.CategoryPreference, 8, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := a.Run(context.Background(), "tell me about stargazing", RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	req := mock.Requests()[0]
	if req.Messages[0].Role != provider.MessageRoleSystem {
		t.Fatalf("first message role %q, want system", req.Messages[0].Role)
	}
	if !strings.Contains(req.Messages[0].Content, "test companion") {
		t.Error("persona missing from system prompt")
	}
	if !strings.Contains(req.Messages[0].Content, "loves stargazing") {
		t.Error("injected memory missing from system prompt")
	}
	if len(req.Tools) == 0 {
		t.Error("built-in tool schemas not sent")
	}

	injected := a.GetInjectedMemories()
	if len(injected) != 1 || injected[0].Content != "loves stargazing" {
		t.Errorf("injected view: %+v", injected)
	}
}

// A tool-only response consumes the bound; with maxRecursions = 1 the
// run ends with empty content, history holds the tool-call record and
// its result, and no second model call happens.
func TestRunRecursionBoundExhausted(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{
			ToolCalls: []provider.ToolCall{{
				ID:        "c1",
				Name:      "list_memories",
				Arguments: json.RawMessage(`{}`),
			}},
			FinishReason: provider.FinishReasonToolUse,
		}),
	}
	a, _ := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "what do you remember", RunOptions{MaxRecursions: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content != "" {
		t.Errorf("content %q, want empty after exhausted bound", res.Content)
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("model calls: got %d, want 1", mock.CompleteCalls())
	}

	history := a.GetHistory()
	if len(history) != 3 {
		t.Fatalf("history: %+v, want user + tool-call + tool-result", history)
	}
	if len(history[1].ToolCalls) != 1 {
		t.Error("assistant tool-call record missing")
	}
	if history[2].Role != provider.MessageRoleTool || history[2].ToolID != "c1" {
		t.Errorf("tool result message: %+v", history[2])
	}
}

// Content alongside tool calls: tools run as side effects, then the
// turn terminates instead of looping.
func TestRunContentWithToolsTerminates(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{
			Content: "noted!",
			ToolCalls: []provider.ToolCall{{
				ID:        "c1",
				Name:      "store_memory",
				Arguments: json.RawMessage(`{"content":"has a dog named Miso","category":"fact","importance":7}`),
			}},
		}),
	}
	a, store := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "I have a dog named Miso", RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content != "noted!" {
		t.Errorf("content %q", res.Content)
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("model calls: got %d, want 1", mock.CompleteCalls())
	}

	// The side effect landed in the store.
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("store count %d, want 1", n)
	}

	// The tool's memory note landed in the session log.
	log := a.GetMemory()
	if len(log) != 1 || !strings.Contains(log[0].Content, "stored memory") {
		t.Errorf("session memory log: %+v", log)
	}
}

func TestRunToolRoundThenContent(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(
			provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{
					Name:      "recall_memory",
					Arguments: json.RawMessage(`{"query":"hobbies"}`),
				}},
			},
			provider.CompletionResponse{Content: "you enjoy gardening"},
		),
	}
	a, _ := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "what are my hobbies?", RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content != "you enjoy gardening" {
		t.Errorf("content %q", res.Content)
	}
	if mock.CompleteCalls() != 2 {
		t.Errorf("model calls: got %d, want 2", mock.CompleteCalls())
	}

	// The provider omitted the call id; a synthesized one must correlate
	// the result.
	history := a.GetHistory()
	var callID, resultID string
	for _, m := range history {
		if m.Role == provider.MessageRoleAssistant && len(m.ToolCalls) > 0 {
			callID = m.ToolCalls[0].ID
		}
		if m.Role == provider.MessageRoleTool {
			resultID = m.ToolID
		}
	}
	if callID == "" || callID != resultID {
		t.Errorf("call id %q vs result id %q, want synthesized and matching", callID, resultID)
	}
}

func TestRunEmptyResponseStops(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{}),
	}
	a, _ := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "hello?", RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content != "" {
		t.Errorf("content %q, want empty", res.Content)
	}
	// History holds only the user turn: an empty response advances nothing.
	if history := a.GetHistory(); len(history) != 1 {
		t.Errorf("history %+v, want only the user message", history)
	}
	if mock.CompleteCalls() != 1 {
		t.Errorf("model calls: got %d, want 1", mock.CompleteCalls())
	}
}

func TestRunProviderErrorIsFatal(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, provider.ErrProtocol
		},
	}
	a, _ := newTestAgent(t, mock)

	_, err := a.Run(context.Background(), "hi", RunOptions{})
	if !errors.Is(err, provider.ErrProtocol) {
		t.Errorf("got %v, want ErrProtocol", err)
	}
}

// Unknown tool names produce a structured failure result in history
// instead of aborting the turn.
func TestRunUnknownToolReported(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(
			provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{ID: "c1", Name: "launch_rocket", Arguments: json.RawMessage(`{}`)}},
			},
			provider.CompletionResponse{Content: "sorry, I cannot do that"},
		),
	}
	a, _ := newTestAgent(t, mock)

	res, err := a.Run(context.Background(), "launch", RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Content == "" {
		t.Error("turn should continue past the unknown tool")
	}

	var toolResult string
	for _, m := range a.GetHistory() {
		if m.Role == provider.MessageRoleTool {
			toolResult = m.Content
		}
	}
	if !strings.Contains(toolResult, `"success":false`) {
		t.Errorf("tool result %q, want structured failure", toolResult)
	}
}

func TestRunHistoryTrimmedBeforeTurn(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(provider.CompletionResponse{Content: "reply"}),
	}
	store := memory.NewMemStore()
	a := New(Config{
		Model:              "test-model",
		MaxContextMessages: 2,
	}, mock, store, WithRand(mathrand.New(mathrand.NewSource(1))))

	for i := 0; i < 4; i++ {
		if _, err := a.Run(context.Background(), "turn", RunOptions{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	// Before the 4th user turn was appended, history was trimmed to the
	// configured 2 exchanges.
	req := mock.Requests()[3]
	exchanges := 0
	for _, m := range req.Messages {
		if m.Role == provider.MessageRoleUser {
			exchanges++
		}
	}
	if exchanges != 3 { // 2 kept + the new turn
		t.Errorf("user messages in request: got %d, want 3", exchanges)
	}
}

// A tool registered between New and the first Run claims its name: the
// built-ins are registered lazily and skip names already taken, so a
// caller can substitute a single built-in without disabling them all.
func TestRegisterToolOverridesBuiltin(t *testing.T) {
	t.Parallel()

	mock := &providertest.MockProvider{
		CompleteFunc: providertest.Sequence(
			provider.CompletionResponse{
				ToolCalls: []provider.ToolCall{{ID: "c1", Name: "store_memory", Arguments: json.RawMessage(`{"content":"x","category":"fact"}`)}},
			},
			provider.CompletionResponse{Content: "done"},
		),
	}
	store := memory.NewMemStore()

	custom := &stubTool{name: "store_memory"}
	a := New(Config{Model: "m"}, mock, store, WithRand(mathrand.New(mathrand.NewSource(1))))
	a.RegisterTool(custom)

	if _, err := a.Run(context.Background(), "remember x", RunOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if custom.calls != 1 {
		t.Errorf("custom tool calls: got %d, want 1", custom.calls)
	}
	// The built-in was skipped, so nothing reached the store.
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("built-in store_memory ran anyway: count %d", n)
	}

	// The remaining built-ins still registered alongside the override.
	var names []string
	for _, def := range mock.Requests()[0].Tools {
		names = append(names, def.Name)
	}
	if len(names) != 6 {
		t.Errorf("tool schemas sent: %v, want the full catalog", names)
	}
}

func TestAddMemoryDefaultsTimestamp(t *testing.T) {
	t.Parallel()

	a, _ := newTestAgent(t, &providertest.MockProvider{})

	a.AddMemory(MemoryEntry{Content: "session note"})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a.AddMemory(MemoryEntry{Content: "dated note", Timestamp: fixed})

	log := a.GetMemory()
	if len(log) != 2 {
		t.Fatalf("log length %d", len(log))
	}
	if log[0].Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}
	if !log[1].Timestamp.Equal(fixed) {
		t.Errorf("explicit timestamp overwritten: %v", log[1].Timestamp)
	}
}

func TestGetMemoryStats(t *testing.T) {
	t.Parallel()

	a, store := newTestAgent(t, &providertest.MockProvider{})
	ctx := context.Background()

	store.Store(ctx, "a fact", memory.CategoryFact, 5, nil)
	store.Store(ctx, "another fact", memory.CategoryFact, 5, nil)
	store.Store(ctx, "a preference", memory.CategoryPreference, 5, nil)

	stats, err := a.GetMemoryStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("count %d, want 3", stats.Count)
	}
	if stats.Categories[memory.CategoryFact] != 2 {
		t.Errorf("fact count %d, want 2", stats.Categories[memory.CategoryFact])
	}
}

type stubTool struct {
	name  string
	calls int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Params() []tools.Param {
	return nil
}
func (s *stubTool) Execute(context.Context, map[string]any) tools.Result {
	s.calls++
	return tools.Result{Success: true}
}
