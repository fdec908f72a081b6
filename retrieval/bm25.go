package retrieval

import (
	"math"
	"regexp"
	"strings"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenRe = regexp.MustCompile(`\w+`)

// tokenize lowercases and splits on \w+, the tokenizer spec §4.5's BM25
// strategy and §4.6's overlap scoring both specify.
func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

type bm25Doc struct {
	id    string
	terms map[string]int
	len   int
}

// bm25Corpus is a small in-memory Okapi BM25 index built fresh per query;
// no example repo in the pack vendors a BM25 implementation, so this is a
// standard-library-only component (DESIGN.md records the justification).
type bm25Corpus struct {
	docs   []bm25Doc
	df     map[string]int
	avgLen float64
}

func newBM25Corpus(idsAndText map[string]string) *bm25Corpus {
	c := &bm25Corpus{df: map[string]int{}}

	var totalLen int
	for id, text := range idsAndText {
		tokens := tokenize(text)
		terms := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			terms[tok]++
		}
		for tok := range terms {
			c.df[tok]++
		}
		c.docs = append(c.docs, bm25Doc{id: id, terms: terms, len: len(tokens)})
		totalLen += len(tokens)
	}

	if len(c.docs) > 0 {
		c.avgLen = float64(totalLen) / float64(len(c.docs))
	}

	return c
}

// score returns each document's BM25 score against query tokens, omitting
// documents that score exactly zero.
func (c *bm25Corpus) score(queryTokens []string) map[string]float64 {
	n := float64(len(c.docs))
	scores := make(map[string]float64)

	for _, doc := range c.docs {
		var s float64
		for _, qt := range queryTokens {
			tf := doc.terms[qt]
			if tf == 0 {
				continue
			}
			df := c.df[qt]
			idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(doc.len)/c.avgLen)
			s += idf * (float64(tf) * (bm25K1 + 1)) / denom
		}
		if s > 0 {
			scores[doc.id] = s
		}
	}

	return scores
}
