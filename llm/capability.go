// Package llm defines the capability contracts the Ingestor, Answerer, and
// Cluster Service call through, and the provider/heuristic variants that
// implement them (spec: "Optional upstreams -> polymorphic capabilities").
// Callers choose a variant at construction time; there is no runtime
// monkey-patching.
package llm

import "context"

// EmbedFunc maps text to a fixed-dimension vector. A nil EmbedFunc means
// embeddings are disabled for the process.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ExtractedEntity is one entity surfaced by an ExtractFunc.
type ExtractedEntity struct {
	Name       string
	Label      string
	Confidence float64
}

// ExtractedRelation connects two entities by their extracted names.
type ExtractedRelation struct {
	Source     string
	Target     string
	Relation   string
	Confidence float64
}

// ExtractResult is the output of an ExtractFunc call.
type ExtractResult struct {
	Entities  []ExtractedEntity
	Relations []ExtractedRelation
}

// ExtractFunc maps text to entities/relations. A nil ExtractFunc, or one
// that returns an error, falls back to the Ingestor's heuristic extractor.
type ExtractFunc func(ctx context.Context, text string) (ExtractResult, error)

// SummarizeFunc produces a short label and summary from a set of sample
// terms/entities, used by the Cluster Service (spec §4.9).
type SummarizeFunc func(ctx context.Context, topTerms []string, sampleEntities []string, maxTokens int) (label, summary string, err error)

// AnswerFunc synthesizes an answer string from assembled context, used by
// the Answerer (spec §4.7).
type AnswerFunc func(ctx context.Context, question, context string) (string, error)
