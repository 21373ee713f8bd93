// Package agent implements the conversation orchestrator: history
// ownership and trimming, per-turn memory injection, system prompt
// assembly, and the bounded tool-call loop against the chat provider.
package agent

import (
	"time"

	"github.com/kokoro-ai/kokoro/memory"
)

// RunOptions tunes one Run invocation. Zero values fall back to the
// agent configuration.
type RunOptions struct {
	// MaxRecursions overrides the model round-trip bound for this turn.
	MaxRecursions int

	// Stream is passed through to the provider unchanged; the agent does
	// no stream reassembly.
	Stream bool
}

// RunResult is the outcome of one conversation turn.
type RunResult struct {
	// Content is the last textual answer the model produced; empty if
	// the recursion bound was exhausted without one.
	Content string

	// Raw is the last raw provider response, for diagnostics.
	Raw []byte
}

// MemoryEntry is one session-local short-term memory log line. Unlike
// store records it is never persisted.
type MemoryEntry struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryStats aggregates store counts for status surfaces.
type MemoryStats struct {
	Count      int                     `json:"count"`
	Categories map[memory.Category]int `json:"categories"`
}
