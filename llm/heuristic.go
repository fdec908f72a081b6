package llm

import (
	"context"
	"regexp"
	"strings"
)

var domainKeywords = []string{
	"python", "docker", "kubernetes", "aws", "postgres", "pytorch",
	"golang", "react", "graphql", "terraform", "redis", "kafka",
}

var titleCaseTokenRe = regexp.MustCompile(`^[A-Z][a-zA-Z]+$`)
var allCapsTokenRe = regexp.MustCompile(`^[A-Z]{2,}$`)
var properNounPhraseRe = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+){1,3})\b`)

const (
	heuristicMaxEntities       = 80
	heuristicMaxPhraseEntities = 50
	heuristicRelationConf      = 0.35
)

// Heuristic is the fallback ExtractFunc used when no extraction client is
// configured, or the configured one fails or is bypassed with
// force_heuristic (spec §4.3 step 3): capital-initial tokens (>=3 chars)
// union all-caps acronyms union a small domain keyword list, deduplicated
// in encounter order and capped at 80, connected consecutively as
// RELATED_TO at confidence 0.35. When that yields nothing, it additionally
// mines multi-word proper-noun phrases (capped at 50).
func Heuristic() ExtractFunc {
	return func(ctx context.Context, text string) (ExtractResult, error) {
		names := extractTokenEntities(text)
		if len(names) == 0 {
			names = extractPhraseEntities(text)
		}

		entities := make([]ExtractedEntity, 0, len(names))
		for _, n := range names {
			entities = append(entities, ExtractedEntity{Name: n})
		}

		var relations []ExtractedRelation
		for i := 0; i+1 < len(names); i++ {
			relations = append(relations, ExtractedRelation{
				Source: names[i], Target: names[i+1],
				Relation: "RELATED_TO", Confidence: heuristicRelationConf,
			})
		}

		return ExtractResult{Entities: entities, Relations: relations}, nil
	}
}

func extractTokenEntities(text string) []string {
	seen := map[string]bool{}
	var out []string

	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if tok == "" {
			continue
		}

		isCandidate := false
		if len(tok) >= 3 && titleCaseTokenRe.MatchString(tok) {
			isCandidate = true
		}
		if allCapsTokenRe.MatchString(tok) {
			isCandidate = true
		}
		lower := strings.ToLower(tok)
		for _, kw := range domainKeywords {
			if strings.Contains(lower, kw) {
				isCandidate = true
				break
			}
		}

		if !isCandidate {
			continue
		}
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tok)
		if len(out) >= heuristicMaxEntities {
			break
		}
	}

	return out
}

func extractPhraseEntities(text string) []string {
	matches := properNounPhraseRe.FindAllString(text, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
		if len(out) >= heuristicMaxPhraseEntities {
			break
		}
	}
	return out
}
