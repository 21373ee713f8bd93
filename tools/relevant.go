package tools

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"strings"
	"time"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/provider"
)

// Importance tier boundaries for injection ordering.
const (
	tierHighMin = 7
	tierMidMin  = 4
)

// expansionPrompt asks the model for related search terms when the
// direct search underfills. Kept terse; the reply is parsed loosely.
const expansionPrompt = "List up to 3 short search keywords related to the following message, one per line, no other text:\n\n"

// Selector picks the memory records injected into the system prompt for
// one turn. The keyword-expansion step is best-effort: provider failures
// yield zero extra terms and are only logged.
type Selector struct {
	store    memory.Store
	provider provider.Provider // may be nil: expansion disabled
	model    string
	logger   *slog.Logger
	rand     *mathrand.Rand
}

// NewSelector builds a Selector. rnd may be nil, in which case a
// time-seeded source is used; tests pass a fixed seed for deterministic
// tier ordering.
func NewSelector(store memory.Store, p provider.Provider, model string, logger *slog.Logger, rnd *mathrand.Rand) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if rnd == nil {
		rnd = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{store: store, provider: p, model: model, logger: logger, rand: rnd}
}

// RelevantMemories merges three candidate sources, deduplicated by id:
// a direct search on the raw input, model-suggested related keywords
// when the direct search underfills, and the top most-important records
// unconditionally. Over-full candidate sets are shuffled and regrouped
// into importance tiers before truncation, trading strict ordering for
// variety across turns.
func (s *Selector) RelevantMemories(ctx context.Context, input string, limit int) []memory.Record {
	if limit <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var candidates []memory.Record
	add := func(recs ...memory.Record) {
		for _, rec := range recs {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			candidates = append(candidates, rec)
		}
	}

	direct, err := s.store.Search(ctx, input, limit)
	if err != nil {
		s.logger.Warn("direct memory search failed", "error", err)
	}
	for _, sr := range direct {
		add(sr.Record)
	}

	if len(candidates) < limit {
		for _, term := range s.expandKeywords(ctx, input) {
			expanded, err := s.store.Search(ctx, term, limit)
			if err != nil {
				s.logger.Warn("keyword search failed", "term", term, "error", err)
				continue
			}
			for _, sr := range expanded {
				add(sr.Record)
			}
		}
	}

	important, err := s.store.GetMostImportant(ctx, limit)
	if err != nil {
		s.logger.Warn("important memory fetch failed", "error", err)
	}
	add(important...)

	if len(candidates) <= limit {
		return candidates
	}

	// Shuffle, then stably regroup into high/mid/low importance tiers:
	// order within a tier varies per turn, tiers never interleave.
	s.rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return tier(candidates[i].Importance) > tier(candidates[j].Importance)
	})

	return candidates[:limit]
}

func tier(importance int) int {
	switch {
	case importance >= tierHighMin:
		return 2
	case importance >= tierMidMin:
		return 1
	default:
		return 0
	}
}

// expandKeywords asks the model for related search terms. Any failure
// returns nil.
func (s *Selector) expandKeywords(ctx context.Context, input string) []string {
	if s.provider == nil {
		return nil
	}

	resp, err := s.provider.Complete(ctx, provider.CompletionRequest{
		Model: s.model,
		Messages: []provider.Message{
			{Role: provider.MessageRoleUser, Content: expansionPrompt + input},
		},
	})
	if err != nil {
		s.logger.Warn("keyword expansion failed", "error", err)
		return nil
	}

	var terms []string
	for _, line := range strings.FieldsFunc(resp.Content, func(r rune) bool {
		return r == '\n' || r == ','
	}) {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "-*0123456789. "))
		if line == "" {
			continue
		}
		terms = append(terms, line)
		if len(terms) == 3 {
			break
		}
	}
	return terms
}
