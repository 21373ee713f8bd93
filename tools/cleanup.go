package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/kokoro-ai/kokoro/memory"
)

// Cleanup heuristics.
const (
	// cleanupWindow bounds analysis to the most recent valid records.
	cleanupWindow = 100

	// normalizePrefixLen is the rune length duplicate grouping keys are
	// truncated to.
	normalizePrefixLen = 50

	outdatedAge           = 30 * 24 * time.Hour
	outdatedMaxAccess     = 3
	outdatedMaxImportance = 4

	lowImportanceCeiling   = 2
	lowImportanceMaxAccess = 2
)

// CleanupStrategy selects which heuristic flags records for removal.
type CleanupStrategy string

const (
	StrategyDuplicates    CleanupStrategy = "duplicates"
	StrategyOutdated      CleanupStrategy = "outdated"
	StrategyLowImportance CleanupStrategy = "low_importance"
	StrategyAll           CleanupStrategy = "all"
)

// CleanupCandidate is one record flagged for removal with the reason.
type CleanupCandidate struct {
	Record memory.Record `json:"record"`
	Reason string        `json:"reason"`
}

// AnalyzeCleanup flags removable records among the most recent
// cleanupWindow valid records, without mutating anything.
func AnalyzeCleanup(ctx context.Context, store memory.Store, strategy CleanupStrategy) ([]CleanupCandidate, error) {
	records, err := store.GetRecent(ctx, cleanupWindow)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyDuplicates:
		return flagDuplicates(records), nil
	case StrategyOutdated:
		return flagOutdated(records, time.Now()), nil
	case StrategyLowImportance:
		return flagLowImportance(records), nil
	case StrategyAll:
		seen := make(map[string]struct{})
		var all []CleanupCandidate
		for _, batch := range [][]CleanupCandidate{
			flagDuplicates(records),
			flagOutdated(records, time.Now()),
			flagLowImportance(records),
		} {
			for _, c := range batch {
				if _, dup := seen[c.Record.ID]; dup {
					continue
				}
				seen[c.Record.ID] = struct{}{}
				all = append(all, c)
			}
		}
		return all, nil
	default:
		return nil, fmt.Errorf("unknown cleanup strategy %q", strategy)
	}
}

// flagDuplicates groups records by normalized content and, within each
// group, keeps the highest-importance record.
func flagDuplicates(records []memory.Record) []CleanupCandidate {
	groups := make(map[string][]memory.Record)
	var keys []string
	for _, rec := range records {
		key := normalizeContent(rec.Content)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], rec)
	}

	var flagged []CleanupCandidate
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		keep := 0
		for i, rec := range group {
			if rec.Importance > group[keep].Importance {
				keep = i
			}
		}
		for i, rec := range group {
			if i != keep {
				flagged = append(flagged, CleanupCandidate{Record: rec, Reason: "duplicate content"})
			}
		}
	}
	return flagged
}

func flagOutdated(records []memory.Record, now time.Time) []CleanupCandidate {
	var flagged []CleanupCandidate
	for _, rec := range records {
		if now.Sub(rec.CreatedAt) > outdatedAge &&
			rec.AccessCount < outdatedMaxAccess &&
			rec.Importance <= outdatedMaxImportance &&
			rec.Category != memory.CategoryFact {
			flagged = append(flagged, CleanupCandidate{Record: rec, Reason: "outdated"})
		}
	}
	return flagged
}

func flagLowImportance(records []memory.Record) []CleanupCandidate {
	var flagged []CleanupCandidate
	for _, rec := range records {
		if rec.Importance <= lowImportanceCeiling &&
			rec.AccessCount < lowImportanceMaxAccess &&
			rec.Category == memory.CategoryContext {
			flagged = append(flagged, CleanupCandidate{Record: rec, Reason: "low importance"})
		}
	}
	return flagged
}

// normalizeContent builds the duplicate-grouping key: keep only letters,
// digits and CJK characters, lowercase, truncate to normalizePrefixLen
// runes.
func normalizeContent(content string) string {
	var b strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || isCJKRune(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	runes := []rune(b.String())
	if len(runes) > normalizePrefixLen {
		runes = runes[:normalizePrefixLen]
	}
	return string(runes)
}

// isCJKRune mirrors the tokenizer's script detection. CJK runes already
// satisfy unicode.IsLetter except for some symbols; kept explicit so the
// grouping key never depends on that detail.
func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// --- cleanup_memories tool ---

type cleanupMemoriesTool struct {
	store  memory.Store
	logger *slog.Logger
}

func (t *cleanupMemoriesTool) Name() string { return "cleanup_memories" }

func (t *cleanupMemoriesTool) Description() string {
	return "Find and remove duplicate, outdated, or low-value memories. Use dryRun to preview what would be removed."
}

func (t *cleanupMemoriesTool) Params() []Param {
	return []Param{
		{Name: "strategy", Type: "string", Description: "Which heuristic to apply. Defaults to all.", Enum: []string{
			string(StrategyDuplicates),
			string(StrategyOutdated),
			string(StrategyLowImportance),
			string(StrategyAll),
		}},
		{Name: "dryRun", Type: "boolean", Description: "When true, only report candidates without removing them. Defaults to true."},
	}
}

func (t *cleanupMemoriesTool) Execute(ctx context.Context, args map[string]any) Result {
	strategy := CleanupStrategy(stringArg(args, "strategy"))
	if strategy == "" {
		strategy = StrategyAll
	}
	dryRun := boolArg(args, "dryRun", true)

	flagged, err := AnalyzeCleanup(ctx, t.store, strategy)
	if err != nil {
		return Failure("Could not analyze memories right now.", err.Error())
	}

	if !dryRun {
		for _, c := range flagged {
			if err := t.store.Invalidate(ctx, c.Record.ID); err != nil {
				return Failure("Cleanup stopped partway through.", err.Error())
			}
		}
	}

	verb := "would remove"
	if !dryRun {
		verb = "removed"
	}
	t.logger.Info("memory cleanup",
		"strategy", string(strategy),
		"flagged", len(flagged),
		"dry_run", dryRun,
	)

	return Result{
		Success: true,
		Message: fmt.Sprintf("Cleanup (%s): %s %d memories.", strategy, verb, len(flagged)),
		Data: map[string]any{
			"strategy": string(strategy),
			"dryRun":   dryRun,
			"count":    len(flagged),
			"flagged":  flagged,
		},
		Memory: fmt.Sprintf("cleanup %s %d memories (%s)", verb, len(flagged), strategy),
	}
}
