package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kokoro-ai/kokoro/provider"
	"github.com/kokoro-ai/kokoro/tools"
)

// toolExecution pairs one requested call with its outcome, in the order
// the model requested the calls.
type toolExecution struct {
	call   provider.ToolCall
	result tools.Result
}

// executeToolCalls fans the requested calls out concurrently and waits
// for all of them. Calls are independent side effects; one failing or
// panicking call never aborts its siblings. Missing call ids are
// synthesized so the result can be correlated back into history.
func (a *Agent) executeToolCalls(ctx context.Context, calls []provider.ToolCall) []toolExecution {
	executions := make([]toolExecution, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		if call.ID == "" {
			call.ID = a.synthesizeCallID(call.Name)
		}
		executions[i].call = call

		wg.Add(1)
		go func(i int, call provider.ToolCall) {
			defer wg.Done()
			executions[i].result = a.registry.Execute(ctx, call.Name, call.Arguments)
		}(i, call)
	}
	wg.Wait()

	return executions
}

// synthesizeCallID builds a correlation id for providers that omit one.
func (a *Agent) synthesizeCallID(name string) string {
	a.mu.Lock()
	suffix := a.rand.Uint32()
	a.mu.Unlock()
	return fmt.Sprintf("call-%s-%d-%08x", name, time.Now().UnixNano(), suffix)
}

// toolResultContent renders a Result as the tool message body fed back
// to the model.
func toolResultContent(result tools.Result) string {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"encode result: %v"}`, err)
	}
	return string(body)
}
