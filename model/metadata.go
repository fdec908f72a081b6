package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/graphrag/internal/errs"
)

// Properties represents open JSONB metadata stored alongside a node or edge.
// Every Properties value on a persisted Node or Edge MUST include "namespace".
type Properties map[string]interface{}

// Value implements the driver.Valuer interface for database storage.
func (p Properties) Value() (driver.Value, error) {
	return p.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval.
func (p *Properties) Scan(value interface{}) error {
	return p.Unmarshal(value)
}

// Marshal converts Properties to JSON bytes.
func (p Properties) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal converts JSON bytes (or an existing Properties) into Properties.
func (p *Properties) Unmarshal(value interface{}) error {
	if value == nil {
		*p = Properties{}
		return nil
	}

	if s, ok := value.(Properties); ok {
		*p = s
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errs.New(errs.StoreFailure, "byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, p)
}

// Namespace returns properties["namespace"] as a string, or "" if absent.
func (p Properties) Namespace() string {
	if p == nil {
		return ""
	}
	v, _ := p["namespace"].(string)
	return v
}

// Merge shallowly merges other into p, returning p. Existing keys are overwritten.
func (p Properties) Merge(other Properties) Properties {
	if p == nil {
		p = Properties{}
	}
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Clone returns a shallow copy of p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
