package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kokoro-ai/kokoro/memory"
)

// forgottenImportance is the fixed importance of the correction record
// written when a memory is forgotten with a stated reason.
const forgottenImportance = 3

// categoryEnum lists the closed category enumeration as schema strings.
func categoryEnum() []string {
	out := make([]string, len(memory.Categories))
	for i, c := range memory.Categories {
		out[i] = string(c)
	}
	return out
}

// MemoryTools builds the built-in tool set over store. All five tools
// report failures as structured results; none returns a Go error to the
// registry.
func MemoryTools(store memory.Store, logger *slog.Logger) []Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return []Tool{
		&storeMemoryTool{store: store, logger: logger},
		&recallMemoryTool{store: store, logger: logger},
		&forgetMemoryTool{store: store, logger: logger},
		&updateMemoryTool{store: store, logger: logger},
		&listMemoriesTool{store: store, logger: logger},
		&cleanupMemoriesTool{store: store, logger: logger},
	}
}

// --- store_memory ---

type storeMemoryTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *storeMemoryTool) Name() string { return "store_memory" }

func (t *storeMemoryTool) Description() string {
	return "Store a new long-term memory about the user. Use for facts, preferences, events, corrections, or conversational context worth remembering."
}

func (t *storeMemoryTool) Params() []Param {
	return []Param{
		{Name: "content", Type: "string", Description: "The memory content to store.", Required: true},
		{Name: "category", Type: "string", Description: "What kind of memory this is.", Enum: categoryEnum(), Required: true},
		{Name: "importance", Type: "number", Description: "Importance from 1 (trivial) to 10 (critical). Defaults to 5."},
		{Name: "reason", Type: "string", Description: "Why this is worth remembering."},
	}
}

func (t *storeMemoryTool) Execute(ctx context.Context, args map[string]any) Result {
	content := stringArg(args, "content")
	category := memory.Category(stringArg(args, "category"))
	importance := intArg(args, "importance", 5)

	rec, err := t.store.Store(ctx, content, category, importance, nil)
	if err != nil {
		if errors.Is(err, memory.ErrInvalidContent) || errors.Is(err, memory.ErrInvalidCategory) {
			return Failure("Could not store the memory: invalid input.", err.Error())
		}
		t.logger.Error("store_memory failed", "error", err)
		return Failure("Could not store the memory right now.", err.Error())
	}

	t.logger.Info("memory stored", "id", rec.ID, "category", rec.Category, "importance", rec.Importance)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Remembered: %s", rec.Content),
		Data:    map[string]any{"id": rec.ID},
		Memory:  fmt.Sprintf("stored memory %s (%s)", rec.ID, rec.Category),
	}
}

// --- recall_memory ---

type recallMemoryTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *recallMemoryTool) Name() string { return "recall_memory" }

func (t *recallMemoryTool) Description() string {
	return "Search stored memories about the user. Returns the most relevant matches."
}

func (t *recallMemoryTool) Params() []Param {
	return []Param{
		{Name: "query", Type: "string", Description: "What to search for.", Required: true},
		{Name: "limit", Type: "number", Description: "Maximum results. Defaults to 5."},
		{Name: "category", Type: "string", Description: "Restrict the search to one category.", Enum: categoryEnum()},
	}
}

func (t *recallMemoryTool) Execute(ctx context.Context, args map[string]any) Result {
	query := stringArg(args, "query")
	limit := intArg(args, "limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var records []memory.Record
	if cat := stringArg(args, "category"); cat != "" {
		// Category filter narrows to a substring scan of that category
		// instead of full-text search.
		candidates, err := t.store.GetByCategory(ctx, memory.Category(cat), 100)
		if err != nil {
			return Failure("Could not search memories right now.", err.Error())
		}
		needle := strings.ToLower(query)
		for _, rec := range candidates {
			if strings.Contains(strings.ToLower(rec.Content), needle) {
				records = append(records, rec)
				if len(records) >= limit {
					break
				}
			}
		}
	} else {
		scored, err := t.store.Search(ctx, query, limit)
		if err != nil {
			return Failure("Could not search memories right now.", err.Error())
		}
		for _, sr := range scored {
			records = append(records, sr.Record)
		}
	}

	for _, rec := range records {
		if err := t.store.RecordAccess(ctx, rec.ID); err != nil {
			t.logger.Warn("record access failed", "id", rec.ID, "error", err)
		}
	}

	if len(records) == 0 {
		return Result{Success: true, Message: "No matching memories found.", Data: []memory.Record{}}
	}
	return Result{
		Success: true,
		Message: FormatRecords(records),
		Data:    records,
	}
}

// --- forget_memory ---

type forgetMemoryTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *forgetMemoryTool) Name() string { return "forget_memory" }

func (t *forgetMemoryTool) Description() string {
	return "Invalidate a stored memory that is wrong or no longer wanted. The record is kept but excluded from recall."
}

func (t *forgetMemoryTool) Params() []Param {
	return []Param{
		{Name: "memoryId", Type: "string", Description: "Identifier of the memory to forget.", Required: true},
		{Name: "reason", Type: "string", Description: "Why it is being forgotten."},
	}
}

func (t *forgetMemoryTool) Execute(ctx context.Context, args map[string]any) Result {
	id := stringArg(args, "memoryId")

	rec, err := t.store.GetByID(ctx, id)
	if err != nil {
		return Failure("Could not look up that memory.", err.Error())
	}
	if rec == nil {
		return Failure("No memory with that identifier.", memory.ErrNotFound.Error())
	}

	if err := t.store.Invalidate(ctx, id); err != nil {
		return Failure("Could not forget that memory right now.", err.Error())
	}

	if reason := stringArg(args, "reason"); reason != "" {
		note := fmt.Sprintf("Forgot %q: %s", rec.Content, reason)
		if _, err := t.store.Store(ctx, note, memory.CategoryCorrection, forgottenImportance, nil); err != nil {
			t.logger.Warn("correction record failed", "id", id, "error", err)
		}
	}

	t.logger.Info("memory forgotten", "id", id)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Forgot: %s", rec.Content),
		Memory:  fmt.Sprintf("forgot memory %s", id),
	}
}

// --- update_memory ---

type updateMemoryTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *updateMemoryTool) Name() string { return "update_memory" }

func (t *updateMemoryTool) Description() string {
	return "Revise the content or importance of an existing memory."
}

func (t *updateMemoryTool) Params() []Param {
	return []Param{
		{Name: "memoryId", Type: "string", Description: "Identifier of the memory to update.", Required: true},
		{Name: "content", Type: "string", Description: "Replacement content."},
		{Name: "importance", Type: "number", Description: "Replacement importance, 1-10."},
		{Name: "reason", Type: "string", Description: "Why it is being updated."},
	}
}

func (t *updateMemoryTool) Execute(ctx context.Context, args map[string]any) Result {
	id := stringArg(args, "memoryId")

	var patch memory.Patch
	if content, ok := args["content"].(string); ok && content != "" {
		patch.Content = &content
	}
	// Key presence alone is not intent: a JSON null decodes to nil and
	// must not collapse to importance 0.
	switch v := args["importance"].(type) {
	case float64:
		imp := int(v)
		patch.Importance = &imp
	case int:
		imp := v
		patch.Importance = &imp
	}
	if patch.Content == nil && patch.Importance == nil {
		return Failure("Nothing to update.", "at least one of content or importance is required")
	}

	rec, err := t.store.Update(ctx, id, patch)
	if err != nil {
		return Failure("Could not update that memory right now.", err.Error())
	}
	if rec == nil {
		return Failure("No memory with that identifier.", memory.ErrNotFound.Error())
	}

	t.logger.Info("memory updated", "id", id)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Updated: %s (importance: %d)", rec.Content, rec.Importance),
		Data:    rec,
		Memory:  fmt.Sprintf("updated memory %s", id),
	}
}

// --- list_memories ---

type listMemoriesTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *listMemoriesTool) Name() string { return "list_memories" }

func (t *listMemoriesTool) Description() string {
	return "List stored memories, optionally filtered by category or sorted by recency or importance."
}

func (t *listMemoriesTool) Params() []Param {
	return []Param{
		{Name: "category", Type: "string", Description: "Restrict to one category, newest first.", Enum: categoryEnum()},
		{Name: "sortBy", Type: "string", Description: "Ordering when no category filter is given.", Enum: []string{"recency", "importance"}},
		{Name: "limit", Type: "number", Description: "Maximum results. Defaults to 10."},
	}
}

func (t *listMemoriesTool) Execute(ctx context.Context, args map[string]any) Result {
	limit := intArg(args, "limit", 10)
	if limit <= 0 {
		limit = 10
	}

	var (
		records []memory.Record
		err     error
	)
	switch {
	case stringArg(args, "category") != "":
		// Category filter takes precedence over sortBy.
		records, err = t.store.GetByCategory(ctx, memory.Category(stringArg(args, "category")), limit)
	case stringArg(args, "sortBy") == "importance":
		records, err = t.store.GetMostImportant(ctx, limit)
	default:
		records, err = t.store.GetRecent(ctx, limit)
	}
	if err != nil {
		return Failure("Could not list memories right now.", err.Error())
	}

	if len(records) == 0 {
		return Result{Success: true, Message: "No memories stored yet.", Data: []memory.Record{}}
	}
	return Result{
		Success: true,
		Message: FormatRecords(records),
		Data:    records,
	}
}
