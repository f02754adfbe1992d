package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"
)

// Field names in the legal corpus collection, matching the ingestion pipeline.
const (
	fieldText     = "text_content"
	fieldSource   = "source_type"
	fieldMetadata = "metadata"
	fieldVector   = "vector"
)

// MilvusConfig holds Milvus connection configuration.
type MilvusConfig struct {
	Address    string
	Token      string
	Collection string

	// Dimension is the vector field width of the collection. When set,
	// searches with a mismatched query vector are rejected up front instead
	// of surfacing as opaque server errors.
	Dimension int
}

// MilvusIndex is the production Index backed by a Milvus collection of
// statute and ruling chunks.
type MilvusIndex struct {
	client     *milvusclient.Client
	collection string
	dimension  int
	logger     *zap.Logger
}

// NewMilvusIndex connects to Milvus and verifies the collection exists.
func NewMilvusIndex(ctx context.Context, cfg MilvusConfig, logger *zap.Logger) (*MilvusIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: cfg.Address,
		APIKey:  cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to milvus: %w", err)
	}

	has, err := client.HasCollection(ctx, milvusclient.NewHasCollectionOption(cfg.Collection))
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("checking collection: %w", err)
	}
	if !has {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("collection %q not found", cfg.Collection)
	}

	task, err := client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(cfg.Collection))
	if err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("waiting for collection load: %w", err)
	}

	logger.Info("connected to milvus",
		zap.String("address", cfg.Address),
		zap.String("collection", cfg.Collection))

	return &MilvusIndex{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}, nil
}

// Search performs an ANN search and maps hits to Chunks, preserving the
// downstream ranking order.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, limit int) ([]Chunk, error) {
	if m.dimension > 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, collection expects %d", len(vector), m.dimension)
	}

	opt := milvusclient.NewSearchOption(m.collection, limit, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldVector).
		WithOutputFields(fieldText, fieldSource, fieldMetadata)

	resultSets, err := m.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var chunks []Chunk
	for _, rs := range resultSets {
		textCol := rs.GetColumn(fieldText)
		sourceCol := rs.GetColumn(fieldSource)
		metaCol := rs.GetColumn(fieldMetadata)

		for i := 0; i < rs.ResultCount; i++ {
			chunk := Chunk{}

			if rs.IDs != nil {
				if id, err := rs.IDs.GetAsInt64(i); err == nil {
					chunk.ID = id
				}
			}
			if i < len(rs.Scores) {
				chunk.Score = rs.Scores[i]
			}
			if textCol != nil {
				if text, err := textCol.GetAsString(i); err == nil {
					chunk.Text = text
				}
			}
			if sourceCol != nil {
				if src, err := sourceCol.GetAsString(i); err == nil {
					chunk.SourceType = src
				}
			}
			if metaCol != nil {
				if raw, err := metaCol.GetAsString(i); err == nil && raw != "" {
					var meta map[string]any
					if err := json.Unmarshal([]byte(raw), &meta); err == nil {
						chunk.Metadata = meta
					} else {
						m.logger.Warn("unparseable chunk metadata", zap.Int64("id", chunk.ID))
					}
				}
			}

			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// Close releases the Milvus connection.
func (m *MilvusIndex) Close(ctx context.Context) error {
	return m.client.Close(ctx)
}

var _ Index = (*MilvusIndex)(nil)
