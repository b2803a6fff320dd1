package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize mirrors the S3 ListObjectsV2 default.
const DefaultPageSize = 1000

type memObject struct {
	body         []byte
	contentType  string
	lastModified time.Time
}

// MemoryStore is a concurrency-safe in-memory ObjectStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: object key
	data map[string]memObject

	pageSize int
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore returning at most pageSize objects per
// List call. If pageSize is <= 0, DefaultPageSize is used.
func NewMemoryStore(pageSize int) *MemoryStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MemoryStore{
		data:     make(map[string]memObject),
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Put stores a copy of body under key.
func (s *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	b := make([]byte, len(body))
	copy(b, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = memObject{
		body:         b,
		contentType:  contentType,
		lastModified: s.now().UTC(),
	}
	return nil
}

// Get returns a copy of the body stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "get", Key: key, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.data[key]
	if !ok {
		return nil, &Error{Op: "get", Key: key, Err: ErrNotFound}
	}

	b := make([]byte, len(obj.body))
	copy(b, obj.body)
	return b, nil
}

// List returns keys with the given prefix in lexical order. The continuation
// token is the last key of the previous page.
func (s *MemoryStore) List(ctx context.Context, prefix, token string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, &Error{Op: "list", Key: prefix, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var page Page
	if len(keys) > s.pageSize {
		keys = keys[:s.pageSize]
		page.NextToken = keys[len(keys)-1]
	}

	page.Objects = make([]ObjectInfo, 0, len(keys))
	for _, k := range keys {
		obj := s.data[k]
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          k,
			Size:         int64(len(obj.body)),
			LastModified: obj.lastModified,
		})
	}
	return page, nil
}

// ContentType returns the content type recorded for key, if present.
func (s *MemoryStore) ContentType(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.data[key]
	return obj.contentType, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
