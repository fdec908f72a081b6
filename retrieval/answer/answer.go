// Package answer implements the Answerer (spec §4.7): a thin composer over
// retrieval.Engine.HybridRetrieve and an optional llm.AnswerFunc capability.
package answer

import (
	"context"
	"strings"

	"github.com/siherrmann/graphrag/llm"
	"github.com/siherrmann/graphrag/model"
	"github.com/siherrmann/graphrag/retrieval"
)

const maxContextChunks = 5

// Answerer implements answer() (spec §4.7).
type Answerer struct {
	engine *retrieval.Engine
	llmFn  llm.AnswerFunc
}

// New builds an Answerer. llmFn may be nil, in which case Answer always
// returns an empty answer string alongside the retrieved context.
func New(engine *retrieval.Engine, llmFn llm.AnswerFunc) *Answerer {
	return &Answerer{engine: engine, llmFn: llmFn}
}

// Answer implements answer(question, top_k, namespace) (spec §4.7).
func (a *Answerer) Answer(ctx context.Context, question string, topK int, namespace string) (model.AnswerResult, error) {
	result, err := a.engine.HybridRetrieve(ctx, question, topK, namespace, nil, nil)
	if err != nil {
		return model.AnswerResult{}, err
	}

	contributing := make([]string, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		contributing = append(contributing, n.ID)
	}

	contextText := buildContext(result.Nodes)

	var text string
	if contextText != "" && a.llmFn != nil {
		text, err = a.llmFn(ctx, question, contextText)
		if err != nil {
			return model.AnswerResult{}, err
		}
	}

	return model.AnswerResult{
		Answer:          text,
		ContextNodes:    result.Nodes,
		ContextEdges:    result.Edges,
		RetrievalMeta:   result.Meta,
		ContributingIDs: contributing,
	}, nil
}

// buildContext concatenates up to maxContextChunks node texts joined by
// "\n---\n", preferring each node's "text" property and falling back to its
// name when absent (non-chunk nodes from the name_contains/BM25 strategies).
func buildContext(nodes []model.Node) string {
	var parts []string
	for _, n := range nodes {
		if len(parts) >= maxContextChunks {
			break
		}
		text, _ := n.Properties["text"].(string)
		if text == "" {
			text = n.Name
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n---\n")
}
