package memory

import (
	"context"
	mathrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemStore is a thread-safe, in-memory implementation of Store.
//
// It is the index-free fallback backend: when the inverted index is not
// yet built, search degrades to substring and keyword-overlap scanning.
// The index is built lazily on first search, exactly once even under
// concurrent first access, and maintained incrementally afterwards.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // insertion order, scan-order tiebreak
	entropy *ulid.MonotonicEntropy

	indexOnce sync.Once
	index     map[string]map[string]struct{} // token → record ids
	indexed   bool
}

// Compile-time interface guard.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]*Record),
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
}

// newID must be called with s.mu held: the entropy source is not
// concurrency-safe.
func (s *MemStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Store validates, persists, and indexes a new record.
func (s *MemStore) Store(_ context.Context, content string, category Category, importance int, metadata map[string]string) (Record, error) {
	if strings.TrimSpace(content) == "" {
		return Record{}, ErrInvalidContent
	}
	if !category.Valid() {
		return Record{}, ErrInvalidCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec := &Record{
		ID:             s.newID(),
		Content:        content,
		Category:       category,
		Importance:     ClampImportance(importance),
		Keywords:       ExtractKeywords(content, MaxKeywords),
		CreatedAt:      now,
		LastAccessedAt: now,
		Valid:          true,
		Metadata:       metadata,
	}

	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.indexAdd(rec)

	return *rec, nil
}

// Search returns valid records ranked by relevance.
func (s *MemStore) Search(_ context.Context, query string, limit int) ([]ScoredRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	s.indexOnce.Do(s.buildIndex)

	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := Tokenize(query)
	overlap := make(map[string]int)
	for _, tok := range tokens {
		for id := range s.index[tok] {
			overlap[id]++
		}
	}

	// Substring scan catches matches the token index misses
	// (partial CJK words, punctuation-only queries).
	queryLower := strings.ToLower(query)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Valid && strings.Contains(strings.ToLower(rec.Content), queryLower) {
			if _, ok := overlap[id]; !ok {
				overlap[id] = 0
			}
		}
	}

	candidates := make([]string, 0, len(overlap))
	for id := range overlap {
		if s.records[id].Valid {
			candidates = append(candidates, id)
		}
	}

	seq := make(map[string]int, len(s.order))
	for i, id := range s.order {
		seq[id] = i
	}

	// Engine ordering: keyword overlap first, then scan order.
	sort.Slice(candidates, func(i, j int) bool {
		if overlap[candidates[i]] != overlap[candidates[j]] {
			return overlap[candidates[i]] > overlap[candidates[j]]
		}
		return seq[candidates[i]] < seq[candidates[j]]
	})

	now := time.Now()
	scored := make([]ScoredRecord, len(candidates))
	for rank, id := range candidates {
		scored[rank] = ScoredRecord{
			Record: *s.records[id],
			Score:  ScoreRecord(*s.records[id], rank, query, now),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// GetByID returns a record regardless of validity, or nil if absent.
func (s *MemStore) GetByID(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

// GetByCategory returns valid records of one category, newest first.
func (s *MemStore) GetByCategory(_ context.Context, category Category, limit int) ([]Record, error) {
	return s.scan(limit, func(r *Record) bool { return r.Category == category }, byCreatedDesc)
}

// GetMostImportant returns valid records by descending importance.
func (s *MemStore) GetMostImportant(_ context.Context, limit int) ([]Record, error) {
	return s.scan(limit, nil, byImportanceDesc)
}

// GetRecent returns valid records by descending creation time.
func (s *MemStore) GetRecent(_ context.Context, limit int) ([]Record, error) {
	return s.scan(limit, nil, byCreatedDesc)
}

func byCreatedDesc(a, b *Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func byImportanceDesc(a, b *Record) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	return byCreatedDesc(a, b)
}

func (s *MemStore) scan(limit int, filter func(*Record) bool, less func(a, b *Record) bool) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Record
	for _, id := range s.order {
		rec := s.records[id]
		if !rec.Valid {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]Record, len(matched))
	for i, rec := range matched {
		out[i] = *rec
	}
	return out, nil
}

// RecordAccess bumps the access counter. Unknown ids are a no-op.
func (s *MemStore) RecordAccess(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	rec.AccessCount++
	rec.LastAccessedAt = time.Now()
	return nil
}

// Invalidate soft-deletes a record and removes it from the active
// search index. Idempotent.
func (s *MemStore) Invalidate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || !rec.Valid {
		return nil
	}
	rec.Valid = false
	s.indexRemove(rec)
	return nil
}

// Delete physically removes a record. Unknown ids are a no-op.
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	s.indexRemove(rec)
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Update applies the provided patch fields. Returns nil if id unknown.
func (s *MemStore) Update(_ context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}

	if patch.Content != nil && *patch.Content != rec.Content {
		if rec.Valid {
			s.indexRemove(rec)
		}
		rec.Content = *patch.Content
		rec.Keywords = ExtractKeywords(rec.Content, MaxKeywords)
		if rec.Valid {
			s.indexAdd(rec)
		}
	}
	if patch.Importance != nil {
		rec.Importance = ClampImportance(*patch.Importance)
	}
	if patch.Category != nil && patch.Category.Valid() {
		rec.Category = *patch.Category
	}
	if patch.Valid != nil && *patch.Valid != rec.Valid {
		if *patch.Valid {
			rec.Valid = true
			s.indexAdd(rec)
		} else {
			rec.Valid = false
			s.indexRemove(rec)
		}
	}

	out := *rec
	return &out, nil
}

// Count returns the number of valid records.
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if rec.Valid {
			n++
		}
	}
	return n, nil
}

// CountByCategory returns per-category counts of valid records.
func (s *MemStore) CountByCategory(_ context.Context) (map[Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Category]int)
	for _, rec := range s.records {
		if rec.Valid {
			counts[rec.Category]++
		}
	}
	return counts, nil
}

// ClearAll removes every record and resets the index.
func (s *MemStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	s.order = nil
	if s.indexed {
		s.index = make(map[string]map[string]struct{})
	}
	return nil
}

// --- inverted index maintenance ---

// buildIndex constructs the inverted index from all valid records.
// Runs at most once, via indexOnce.
func (s *MemStore) buildIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = make(map[string]map[string]struct{})
	s.indexed = true
	for _, rec := range s.records {
		if rec.Valid {
			s.indexAddLocked(rec)
		}
	}
}

// indexAdd registers a record's tokens; no-op before the index exists.
// Caller must hold s.mu.
func (s *MemStore) indexAdd(rec *Record) {
	if !s.indexed {
		return
	}
	s.indexAddLocked(rec)
}

func (s *MemStore) indexAddLocked(rec *Record) {
	for _, tok := range Tokenize(rec.Content) {
		ids, ok := s.index[tok]
		if !ok {
			ids = make(map[string]struct{})
			s.index[tok] = ids
		}
		ids[rec.ID] = struct{}{}
	}
}

// indexRemove drops a record's tokens; no-op before the index exists.
// Caller must hold s.mu.
func (s *MemStore) indexRemove(rec *Record) {
	if !s.indexed {
		return
	}
	for _, tok := range Tokenize(rec.Content) {
		if ids, ok := s.index[tok]; ok {
			delete(ids, rec.ID)
			if len(ids) == 0 {
				delete(s.index, tok)
			}
		}
	}
}
