package agent

import (
	"context"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kokoro-ai/kokoro/memory"
	"github.com/kokoro-ai/kokoro/provider"
	"github.com/kokoro-ai/kokoro/tools"
)

// Defaults for unset Config fields.
const (
	defaultMaxRecursions      = 3
	defaultMaxContextMessages = 20
	defaultInjectionLimit     = 5
)

// Config holds the orchestrator configuration.
type Config struct {
	// Persona is the base system prompt text describing the character.
	Persona string `yaml:"persona"`

	// Model is the provider model identifier sent with every request.
	Model string `yaml:"model"`

	// MaxRecursions bounds model round-trips per turn.
	MaxRecursions int `yaml:"max_recursions"`

	// MaxContextMessages bounds complete user/assistant exchanges kept in
	// history before a new turn is appended.
	MaxContextMessages int `yaml:"max_context_messages"`

	// InjectionLimit bounds memories injected into the system prompt.
	InjectionLimit int `yaml:"injection_limit"`

	// DisableAutoInjection turns off per-turn memory retrieval.
	DisableAutoInjection bool `yaml:"disable_auto_injection"`

	// EnableKeywordExpansion lets injection ask the model for related
	// search terms when the direct search underfills. Costs an extra
	// model call per turn, so off by default.
	EnableKeywordExpansion bool `yaml:"enable_keyword_expansion"`

	// DisableBuiltinTools skips auto-registration of the memory tools.
	DisableBuiltinTools bool `yaml:"disable_builtin_tools"`
}

// defaults fills zero-valued fields.
func (c *Config) defaults() {
	if c.MaxRecursions <= 0 {
		c.MaxRecursions = defaultMaxRecursions
	}
	if c.MaxContextMessages <= 0 {
		c.MaxContextMessages = defaultMaxContextMessages
	}
	if c.InjectionLimit <= 0 {
		c.InjectionLimit = defaultInjectionLimit
	}
}

// Agent orchestrates one conversation session. Runs must be serialized
// by the caller: at most one Run in flight per Agent. The read-only
// accessors are safe to call concurrently with a Run.
type Agent struct {
	cfg      Config
	provider provider.Provider
	store    memory.Store
	registry *tools.Registry
	selector *tools.Selector
	logger   *slog.Logger
	rand     *mathrand.Rand

	sessionID string

	// builtinOnce defers built-in tool registration to the first Run so
	// caller-registered tools can claim their names first.
	builtinOnce sync.Once

	mu       sync.Mutex
	history  []provider.Message
	injected []memory.Record
	memLog   []MemoryEntry
}

// Option customizes Agent construction.
type Option func(*Agent)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithRand sets the random source used for injection variety and
// synthesized tool-call ids. Tests pass a fixed seed.
func WithRand(rnd *mathrand.Rand) Option {
	return func(a *Agent) { a.rand = rnd }
}

// New builds an Agent over the given provider and memory store. The
// built-in memory tools are registered on the first Run unless
// disabled; a tool the caller registers before then takes the name and
// the built-in is skipped.
func New(cfg Config, p provider.Provider, store memory.Store, opts ...Option) *Agent {
	cfg.defaults()

	a := &Agent{
		cfg:       cfg,
		provider:  p,
		store:     store,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("session", a.sessionID)
	if a.rand == nil {
		a.rand = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}

	a.registry = tools.NewRegistry(a.logger)
	var expander provider.Provider
	if cfg.EnableKeywordExpansion {
		expander = p
	}
	a.selector = tools.NewSelector(store, expander, cfg.Model, a.logger, a.rand)

	return a
}

// SessionID returns the identifier attached to this session's logs.
func (a *Agent) SessionID() string { return a.sessionID }

// ensureBuiltinTools registers the built-in memory tools on first use.
// A name the caller already claimed via RegisterTool is skipped, so a
// custom tool can substitute for an individual built-in.
func (a *Agent) ensureBuiltinTools() {
	a.builtinOnce.Do(func() {
		if a.cfg.DisableBuiltinTools {
			return
		}
		for _, t := range tools.MemoryTools(a.store, a.logger) {
			if a.registry.Get(t.Name()) == nil {
				a.registry.Register(t)
			}
		}
	})
}

// RegisterTool adds a tool to the session catalog. First registration
// of a name wins; duplicates are dropped with a warning. A tool
// registered before the first Run takes its name over the built-in.
func (a *Agent) RegisterTool(t tools.Tool) {
	a.registry.Register(t)
}

// AddMemory appends a session-local memory log entry, defaulting the
// timestamp to now.
func (a *Agent) AddMemory(entry MemoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memLog = append(a.memLog, entry)
}

// GetHistory returns a copy of the conversation history.
func (a *Agent) GetHistory() []provider.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]provider.Message, len(a.history))
	copy(out, a.history)
	return out
}

// GetMemory returns a copy of the session memory log.
func (a *Agent) GetMemory() []MemoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MemoryEntry, len(a.memLog))
	copy(out, a.memLog)
	return out
}

// GetInjectedMemories returns the records injected on the last turn.
func (a *Agent) GetInjectedMemories() []memory.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]memory.Record, len(a.injected))
	copy(out, a.injected)
	return out
}

// GetMemoryStats aggregates valid-record counts from the store.
func (a *Agent) GetMemoryStats(ctx context.Context) (MemoryStats, error) {
	count, err := a.store.Count(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	byCat, err := a.store.CountByCategory(ctx)
	if err != nil {
		return MemoryStats{}, err
	}
	return MemoryStats{Count: count, Categories: byCat}, nil
}
