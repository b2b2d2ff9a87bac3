package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
)

// Bleve is an embedded search backend used for dev mode and tests. Documents
// are partitioned per logical index inside a single bleve index by an
// internal `_index` field.
type Bleve struct {
	index bleve.Index
	mu    sync.Mutex
}

// NewBleve opens (or creates) a bleve index at path. An empty path builds an
// in-memory index.
func NewBleve(path string) (*Bleve, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("bleve mem index: %w", err)
		}
		return &Bleve{index: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("bleve open %s: %w", path, err)
	}
	return &Bleve{index: idx}, nil
}

// Search runs a bleve query-string query scoped to the logical index.
func (b *Bleve) Search(ctx context.Context, index, query string, size int) (*Result, error) {
	if size <= 0 {
		size = 50
	}
	scoped := fmt.Sprintf("+_index:%q %s", index, query)
	q := bleve.NewQueryStringQuery(scoped)
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}

	b.mu.Lock()
	res, err := b.index.SearchInContext(ctx, req)
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := &Result{Total: int(res.Total)}
	for _, match := range res.Hits {
		fields := make(map[string]interface{}, len(match.Fields))
		for k, v := range match.Fields {
			if k == "_index" {
				continue
			}
			fields[k] = v
		}
		src, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("bleve hit marshal: %w", err)
		}
		out.Hits = append(out.Hits, Hit{ID: match.ID, Score: match.Score, Source: src})
	}
	return out, nil
}

// Index flattens the document to a field map and stores it under a fresh ID.
func (b *Bleve) Index(ctx context.Context, index string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("bleve doc marshal: %w", err)
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("bleve doc must be an object: %w", err)
	}
	fields["_index"] = index

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Index(uuid.NewString(), fields); err != nil {
		return fmt.Errorf("bleve index: %w", err)
	}
	return nil
}

// Close releases the underlying index.
func (b *Bleve) Close() error { return b.index.Close() }
