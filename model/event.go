package model

import "time"

// SSE event names guaranteed per successful ingest (spec §4.12).
const (
	EventNodeAdded  = "node_added"
	EventEdgesAdded = "edges_added"
)

// Event is one Event Bus record, framed to subscribers as an SSE message.
type Event struct {
	Name      string      `json:"event"`
	Namespace string      `json:"namespace"`
	Data      interface{} `json:"data"`
	At        time.Time   `json:"at"`
}

// EdgesAddedData is the payload of an aggregate edges_added event.
type EdgesAddedData struct {
	Count int    `json:"count"`
	DocID string `json:"doc_id"`
}

// NodeAddedData is the payload of a node_added event.
type NodeAddedData struct {
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	DocID  string `json:"doc_id"`
}
