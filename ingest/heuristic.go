package ingest

import (
	"regexp"
	"strings"

	"github.com/siherrmann/graphrag/llm"
)

const (
	maxHeuristicEntities  = 80
	maxPhraseEntities     = 50
	heuristicRelationConf = 0.35
)

var (
	capitalInitialRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
	allCapsAcronymRe = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	properPhraseRe   = regexp.MustCompile(`\b(?:[A-Z][a-zA-Z]+\s+){1,4}[A-Z][a-zA-Z]+\b`)
)

// domainKeywords is the small hard-coded domain keyword list the heuristic
// extractor additionally mines, independent of capitalization (spec
// §4.3 step 3).
var domainKeywords = []string{
	"python", "docker", "kubernetes", "aws", "postgres", "pytorch",
	"golang", "react", "graphql", "terraform", "kafka",
}

// heuristicExtract is the fallback extractor used when the Extraction
// Client is absent, disabled, or fails: capital-initial tokens (>=3 chars)
// union all-caps acronyms union a domain keyword list, deduplicated in
// encounter order and capped at 80 entities, with consecutive entities
// connected by RELATED_TO at confidence 0.35. When nothing is found, it
// additionally mines multi-word proper-noun phrases (capped at 50).
func heuristicExtract(text string) llm.ExtractResult {
	names := collectCandidates(text)
	if len(names) > maxHeuristicEntities {
		names = names[:maxHeuristicEntities]
	}

	if len(names) == 0 {
		names = collectPhrases(text)
		if len(names) > maxPhraseEntities {
			names = names[:maxPhraseEntities]
		}
	}

	entities := make([]llm.ExtractedEntity, 0, len(names))
	for _, n := range names {
		entities = append(entities, llm.ExtractedEntity{Name: n, Label: "Entity", Confidence: heuristicRelationConf})
	}

	relations := make([]llm.ExtractedRelation, 0, max(0, len(names)-1))
	for i := 0; i+1 < len(names); i++ {
		relations = append(relations, llm.ExtractedRelation{
			Source: names[i], Target: names[i+1], Relation: "RELATED_TO", Confidence: heuristicRelationConf,
		})
	}

	return llm.ExtractResult{Entities: entities, Relations: relations}
}

func collectCandidates(text string) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(name string) {
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for _, m := range capitalInitialRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range allCapsAcronymRe.FindAllString(text, -1) {
		add(m)
	}
	lower := strings.ToLower(text)
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}

	return out
}

func collectPhrases(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range properPhraseRe.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
