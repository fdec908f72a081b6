// Package vectorindex wraps an external ANN vector index (Qdrant) used as
// the Retriever's first strategy when configured (spec §4.5 strategy 1).
// It is optional: Ingestor and Retriever both accept a nil Index and fall
// back to the next strategy in the chain.
package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Hit is one ANN search result, preserving the external index's rank order.
type Hit struct {
	NodeID string
	Score  float64
}

// Index is the ANN vector index contract the Retriever calls through.
type Index interface {
	Upsert(ctx context.Context, namespace, nodeID string, embedding []float32) error
	Delete(ctx context.Context, namespace, nodeID string) error
	Search(ctx context.Context, namespace string, embedding []float32, topK int) ([]Hit, error)
	Close() error
}

const namespacePayloadField = "namespace"
const nodeIDPayloadField = "node_id"

// Qdrant is an Index backed by a Qdrant collection, grounded on the pack's
// gRPC client usage (NewClient/CreateCollection/Upsert/Query).
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrant connects to dsn (e.g. "http://localhost:6334?api_key=...") and
// ensures collection exists with the given vector dimension, cosine metric.
func NewQdrant(ctx context.Context, dsn, collection string, dimension int) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be > 0")
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid port in dsn: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create client: %w", err)
	}

	q := &Qdrant{client: client, collection: collection, dimension: dimension}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}
	return nil
}

// pointID derives a deterministic UUID from a namespace-scoped node id,
// since Qdrant point ids must be a UUID or unsigned integer.
func pointID(namespace, nodeID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace+"/"+nodeID)).String())
}

func (q *Qdrant) Upsert(ctx context.Context, namespace, nodeID string, embedding []float32) error {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	payload := qdrant.NewValueMap(map[string]any{
		namespacePayloadField: namespace,
		nodeIDPayloadField:    nodeID,
	})

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      pointID(namespace, nodeID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}
	return nil
}

func (q *Qdrant) Delete(ctx context.Context, namespace, nodeID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(pointID(namespace, nodeID)),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete: %w", err)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, namespace string, embedding []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(namespacePayloadField, namespace)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, hit := range results {
		nodeID := ""
		if hit.Payload != nil {
			if v, ok := hit.Payload[nodeIDPayloadField]; ok {
				nodeID = v.GetStringValue()
			}
		}
		if nodeID == "" {
			continue
		}
		hits = append(hits, Hit{NodeID: nodeID, Score: float64(hit.Score)})
	}

	return hits, nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

var _ Index = (*Qdrant)(nil)
