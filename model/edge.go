package model

import "time"

// Canonical edge relations. The relation enum is open; these are the
// values the core itself produces.
const (
	RelRelatedTo   = "RELATED_TO"
	RelMentionedIn = "MENTIONED_IN"
	RelContains    = "CONTAINS"
	RelHasEntity   = "HAS_ENTITY"
	RelCoOccurs    = "CO_OCCURS"
	RelRoleAt      = "ROLE_AT"
	RelUsesTech    = "USES_TECH"
	RelLinks       = "LINKS"
)

// RelationWeight assigns each canonical relation a weight used by the query
// adapter's relation-score component (spec §4.6).
var RelationWeight = map[string]float64{
	RelRoleAt:      0.9,
	RelUsesTech:    0.85,
	RelCoOccurs:    0.75,
	RelRelatedTo:   0.6,
	RelHasEntity:   0.5,
	RelContains:    0.45,
	RelMentionedIn: 0.4,
}

const defaultRelationWeight = 0.6

// WeightOf returns the relation weight for rel, defaulting to 0.6 when rel
// is not one of the canonical relations.
func WeightOf(rel string) float64 {
	if w, ok := RelationWeight[rel]; ok {
		return w
	}
	return defaultRelationWeight
}

// Edge is a directed relationship between two nodes in the same namespace.
type Edge struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	TargetID   string     `json:"target_id"`
	Relation   string     `json:"relation"`
	Confidence float64    `json:"confidence"`
	Properties Properties `json:"properties"`
	CreatedAt  time.Time  `json:"created_at"`
}

// WithNamespace returns a shallow copy of e with Properties["namespace"] set.
func (e Edge) WithNamespace(ns string) Edge {
	if e.Properties == nil {
		e.Properties = Properties{}
	} else {
		e.Properties = e.Properties.Clone()
	}
	e.Properties["namespace"] = ns
	return e
}

// Namespace returns the edge's namespace from its properties.
func (e Edge) Namespace() string {
	return e.Properties.Namespace()
}
