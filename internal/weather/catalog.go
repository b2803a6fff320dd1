package weather

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/i474232898/weather-s3-ingest/internal/store"
)

// DefaultListLimit is the listing size used when none is given.
const DefaultListLimit = 20

// Catalog browses stored weather documents.
type Catalog struct {
	store store.ObjectStore
}

// NewCatalog creates a Catalog over st.
func NewCatalog(st store.ObjectStore) *Catalog {
	return &Catalog{store: st}
}

// List returns up to limit objects matching f, in key order. No further
// pages are fetched once limit matches are found. A non-positive limit uses
// DefaultListLimit.
func (c *Catalog) List(ctx context.Context, f KeyFilter, limit int) ([]store.ObjectInfo, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return store.Collect(ctx, c.store, f.ListPrefix(), limit, f.Match)
}

// Document returns the stored JSON document under key. Unknown fields are
// kept as-is.
func (c *Catalog) Document(ctx context.Context, key string) (json.RawMessage, error) {
	body, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("object %q is not valid JSON", key)
	}
	return json.RawMessage(body), nil
}
