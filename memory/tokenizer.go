package memory

import (
	"strings"
	"sync"
	"unicode"

	"github.com/go-ego/gse"
)

// minTokenLen is the minimum length (in runes) for tokens from
// whitespace-delimited scripts. CJK tokens have no minimum: a single
// character can be a meaningful unit.
const minTokenLen = 2

// MaxKeywords caps the keyword set derived from record content.
const MaxKeywords = 10

// The gse dictionary is large; load it lazily and exactly once, even
// under concurrent first access.
var (
	segOnce sync.Once
	seg     gse.Segmenter
	segErr  error
)

func segmenter() *gse.Segmenter {
	segOnce.Do(func() {
		segErr = seg.LoadDict()
	})
	if segErr != nil {
		return nil
	}
	return &seg
}

// isCJK reports whether r belongs to a script written without
// whitespace word separators.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Tokenize splits text into search tokens, in text order.
//
// CJK runs are segmented on linguistic word boundaries via gse; other
// runs are split on non-alphanumeric characters, lowercased, and
// filtered to minTokenLen. The output is deterministic and feeds both
// the search index and keyword extraction.
func Tokenize(text string) []string {
	var tokens []string
	var run []rune
	runCJK := false

	flush := func() {
		if len(run) == 0 {
			return
		}
		if runCJK {
			tokens = append(tokens, cutCJK(string(run))...)
		} else {
			tokens = append(tokens, cutPlain(string(run))...)
		}
		run = run[:0]
	}

	for _, r := range text {
		cjk := isCJK(r)
		if len(run) > 0 && cjk != runCJK {
			flush()
		}
		runCJK = cjk
		run = append(run, r)
	}
	flush()

	return tokens
}

// cutCJK segments a pure-CJK run into words. Single-character words are
// retained. Falls back to per-character tokens if the dictionary failed
// to load.
func cutCJK(run string) []string {
	s := segmenter()
	if s == nil {
		chars := []rune(run)
		out := make([]string, len(chars))
		for i, r := range chars {
			out[i] = string(r)
		}
		return out
	}

	var out []string
	for _, w := range s.Cut(run, true) {
		w = strings.TrimSpace(w)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// cutPlain splits a non-CJK run on non-alphanumeric boundaries,
// lowercases, and drops noise tokens shorter than minTokenLen.
func cutPlain(run string) []string {
	fields := strings.FieldsFunc(run, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var out []string
	for _, f := range fields {
		f = strings.ToLower(f)
		if len([]rune(f)) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// ExtractKeywords derives the keyword set for a record's content:
// deduplicated tokens in first-seen order, capped at max.
func ExtractKeywords(content string, max int) []string {
	if max <= 0 {
		max = MaxKeywords
	}

	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range Tokenize(content) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
		if len(keywords) >= max {
			break
		}
	}
	return keywords
}
