package weaviate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"textvault/internal/ingest"
)

// queryLimit bounds per-upload chunk queries. A single upload never comes
// close to this many windows.
const queryLimit = 10000

// Store persists ingested chunks in a Weaviate class, keyed by the owning
// upload's id (sourceId).
type Store struct {
	client *weaviate.Client
	class  string
}

func NewStore(client *weaviate.Client, class string) *Store {
	return &Store{client: client, class: class}
}

// Write persists the chunk batch for one sourceID. In incremental mode any
// prior chunks for the sourceID are replaced; otherwise the batch appends.
// Weaviate has no transactions, so atomicity is approximated with
// compensation: if any insert fails, every object created by this call is
// removed before returning the error, leaving no partial batch behind.
func (s *Store) Write(ctx context.Context, sourceID string, chunks []ingest.Chunk, embeddingDims int, incremental bool) error {
	for _, c := range chunks {
		if embeddingDims > 0 && c.Embedding != nil && len(c.Embedding) != embeddingDims {
			return fmt.Errorf("chunk %s: embedding has %d dimensions, expected %d", c.ID, len(c.Embedding), embeddingDims)
		}
	}

	if incremental {
		if err := s.DeleteBySourceID(ctx, sourceID); err != nil {
			return fmt.Errorf("replacing chunks for %s: %w", sourceID, err)
		}
	}

	var created []string
	for _, c := range chunks {
		creator := s.client.Data().Creator().
			WithClassName(s.class).
			WithID(c.ID).
			WithProperties(chunkProperties(c))
		if c.Embedding != nil {
			creator = creator.WithVector(c.Embedding)
		}
		if _, err := creator.Do(ctx); err != nil {
			s.rollback(ctx, created)
			return fmt.Errorf("storing chunk %s: %w", c.ID, err)
		}
		created = append(created, c.ID)
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, ids []string) {
	for _, id := range ids {
		_ = s.client.Data().Deleter().
			WithClassName(s.class).
			WithID(id).
			Do(ctx)
	}
}

func chunkProperties(c ingest.Chunk) map[string]interface{} {
	props := map[string]interface{}{
		"content":    c.Content,
		"sourceId":   c.SourceID,
		"documentId": c.DocumentID,
		"createdAt":  c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.Context != "" {
		props["context"] = c.Context
	}
	if c.Summary != "" {
		props["summary"] = c.Summary
	}
	// An empty metadata field stays absent so readers see null, not "{}".
	if c.Metadata != "" {
		props["metadata"] = c.Metadata
	}
	return props
}

// Query returns all chunks for sourceID ordered by createdAt ascending.
func (s *Store) Query(ctx context.Context, sourceID string) ([]ingest.Chunk, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "sourceId"},
		{Name: "documentId"},
		{Name: "context"},
		{Name: "summary"},
		{Name: "metadata"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	where := filters.Where().
		WithOperator(filters.Equal).
		WithPath([]string{"sourceId"}).
		WithValueString(sourceID)

	res, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithWhere(where).
		WithLimit(queryLimit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var chunks []ingest.Chunk
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if raw, ok := data[s.class].([]interface{}); ok {
			for _, entry := range raw {
				props, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				chunks = append(chunks, chunkFromProperties(props))
			}
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].CreatedAt.Before(chunks[j].CreatedAt)
	})
	return chunks, nil
}

func chunkFromProperties(props map[string]interface{}) ingest.Chunk {
	chunk := ingest.Chunk{}
	if v, ok := props["content"].(string); ok {
		chunk.Content = v
	}
	if v, ok := props["sourceId"].(string); ok {
		chunk.SourceID = v
	}
	if v, ok := props["documentId"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := props["context"].(string); ok {
		chunk.Context = v
	}
	if v, ok := props["summary"].(string); ok {
		chunk.Summary = v
	}
	if v, ok := props["metadata"].(string); ok {
		chunk.Metadata = v
	}
	if v, ok := props["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			chunk.CreatedAt = t
		}
	}
	if additional, ok := props["_additional"].(map[string]interface{}); ok {
		if id, ok := additional["id"].(string); ok {
			chunk.ID = id
		}
	}
	return chunk
}

// UpdateMetadata patches a chunk's metadata property in place, leaving
// content, vector and summary untouched.
func (s *Store) UpdateMetadata(ctx context.Context, chunkID, metadata string) error {
	props := map[string]interface{}{
		// Weaviate merge updates cannot unset a property; an empty object
		// marker stands in for null on cleared metadata.
		"metadata": metadata,
	}
	return s.client.Data().Updater().
		WithClassName(s.class).
		WithID(chunkID).
		WithProperties(props).
		WithMerge().
		Do(ctx)
}

// DeleteBySourceID removes every chunk owned by sourceID. Deleting a
// sourceID with no chunks is a no-op.
func (s *Store) DeleteBySourceID(ctx context.Context, sourceID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.class).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"sourceId"}).
			WithOperator(filters.Equal).
			WithValueString(sourceID)).
		Do(ctx)
	return err
}

// CountChunks reports the total number of stored chunks across uploads.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}

	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if raw, ok := data[s.class].([]interface{}); ok && len(raw) > 0 {
			if entry, ok := raw[0].(map[string]interface{}); ok {
				if meta, ok := entry["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
