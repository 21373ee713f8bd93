package agent

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/metrics"
	"github.com/kokoro-ai/kokoro/provider"
	"github.com/kokoro-ai/kokoro/tools"
)

var tracer = otel.Tracer("kokoro/agent")

// Run executes one conversation turn: trim history, append the user
// message, inject relevant memories, then loop against the provider
// until it produces narrative content, requests nothing, or the
// recursion bound is hit.
//
// Tool-call rounds without content consume the bound; a response with
// content terminates the loop after its tools have run. Content may be
// empty in the result if the bound was exhausted first. Provider
// failures (including provider.ErrProtocol) are fatal to the turn.
func (a *Agent) Run(ctx context.Context, userInput string, opts RunOptions) (RunResult, error) {
	ctx, span := tracer.Start(ctx, "agent.run")
	defer span.End()

	a.ensureBuiltinTools()

	maxRecursions := opts.MaxRecursions
	if maxRecursions <= 0 {
		maxRecursions = a.cfg.MaxRecursions
	}

	a.mu.Lock()
	a.history = trimHistory(a.history, a.cfg.MaxContextMessages)
	a.history = append(a.history, provider.Message{
		Role:    provider.MessageRoleUser,
		Content: userInput,
	})
	a.mu.Unlock()

	injected := a.injectMemories(ctx, userInput)
	systemPrompt := buildSystemPrompt(a.cfg.Persona, tools.FormatRecords(injected))

	var (
		finalContent string
		lastRaw      []byte
	)

	for iteration := 0; iteration < maxRecursions; iteration++ {
		resp, err := a.provider.Complete(ctx, provider.CompletionRequest{
			Model:    a.cfg.Model,
			Messages: a.requestMessages(systemPrompt),
			Tools:    a.registry.Definitions(),
			Stream:   opts.Stream,
		})
		if err != nil {
			metrics.AgentRuns.WithLabelValues("error").Inc()
			span.RecordError(err)
			return RunResult{}, err
		}
		lastRaw = resp.Raw

		hasContent := resp.Content != ""
		hasTools := len(resp.ToolCalls) > 0

		// Nothing requested and nothing said: stop without advancing
		// history.
		if !hasContent && !hasTools {
			break
		}

		assistant := provider.Message{
			Role:      provider.MessageRoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}

		if !hasTools {
			a.appendHistory(assistant)
			finalContent = resp.Content
			break
		}

		executions := a.executeToolCalls(ctx, resp.ToolCalls)

		// The assistant's tool-call record goes in before its results so
		// the correlation ids resolve in order.
		results := make([]provider.Message, 0, len(executions))
		for _, exec := range executions {
			results = append(results, provider.Message{
				Role:    provider.MessageRoleTool,
				Name:    exec.call.Name,
				ToolID:  exec.call.ID,
				Content: toolResultContent(exec.result),
			})
		}
		a.appendHistory(append([]provider.Message{assistant}, results...)...)

		for _, exec := range executions {
			if exec.result.Memory != "" {
				a.AddMemory(MemoryEntry{Content: exec.result.Memory})
			}
		}

		// Once narrative content exists, remaining tools were side
		// effects; the turn is done.
		if hasContent {
			finalContent = resp.Content
			break
		}

		a.logger.Debug("tool round complete, continuing",
			"iteration", iteration+1,
			"tools", len(executions),
		)
	}

	span.SetAttributes(
		attribute.Bool("content_produced", finalContent != ""),
		attribute.Int("injected_memories", len(injected)),
	)
	metrics.AgentRuns.WithLabelValues("ok").Inc()

	return RunResult{Content: finalContent, Raw: lastRaw}, nil
}

// injectMemories retrieves the per-turn injected set. Best-effort:
// store or provider trouble degrades to an empty set, never fails the
// turn.
func (a *Agent) injectMemories(ctx context.Context, userInput string) []memory.Record {
	if a.cfg.DisableAutoInjection {
		return nil
	}

	start := time.Now()
	injected := a.selector.RelevantMemories(ctx, userInput, a.cfg.InjectionLimit)
	a.logger.Debug("memories injected",
		"count", len(injected),
		"elapsed", time.Since(start),
	)

	a.mu.Lock()
	a.injected = injected
	a.mu.Unlock()
	return injected
}

// requestMessages builds the outbound message list: the assembled
// system prompt followed by the session history.
func (a *Agent) requestMessages(systemPrompt string) []provider.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	msgs := make([]provider.Message, 0, len(a.history)+1)
	msgs = append(msgs, provider.Message{
		Role:    provider.MessageRoleSystem,
		Content: systemPrompt,
	})
	return append(msgs, a.history...)
}

func (a *Agent) appendHistory(msgs ...provider.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, msgs...)
}
