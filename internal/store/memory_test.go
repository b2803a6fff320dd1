package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	body := []byte(`{"city":"London"}`)
	if err := s.Put(ctx, "2026/02/18/london_140509.json", body, ContentTypeJSON); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	body[0] = 'X' // stored copy must not change

	got, err := s.Get(ctx, "2026/02/18/london_140509.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"city":"London"}` {
		t.Fatalf("unexpected body %q", got)
	}
	if ct, ok := s.ContentType("2026/02/18/london_140509.json"); !ok || ct != ContentTypeJSON {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore(0)

	_, err := s.Get(context.Background(), "missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Op != "get" {
		t.Fatalf("expected *Error with op get, got %#v", err)
	}
}

func TestMemoryStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("2026/02/18/city%d_000000.json", i)
		if err := s.Put(ctx, key, []byte("{}"), ContentTypeJSON); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Put(ctx, "2026/02/19/other_000000.json", []byte("{}"), ContentTypeJSON); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var (
		keys  []string
		token string
		pages int
	)
	for {
		page, err := s.List(ctx, "2026/02/18/", token)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		pages++
		for _, o := range page.Objects {
			keys = append(keys, o.Key)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if len(keys) != 5 {
		t.Fatalf("expected 5 keys, got %v", keys)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not ordered: %v", keys)
		}
	}
}

// countingStore counts List calls made against the wrapped store.
type countingStore struct {
	ObjectStore
	lists int
}

func (c *countingStore) List(ctx context.Context, prefix, token string) (Page, error) {
	c.lists++
	return c.ObjectStore.List(ctx, prefix, token)
}

func TestCollectStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(2)
	for i := 0; i < 10; i++ {
		_ = mem.Put(ctx, fmt.Sprintf("k%02d", i), []byte("{}"), ContentTypeJSON)
	}
	cs := &countingStore{ObjectStore: mem}

	objs, err := Collect(ctx, cs, "", 3, nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(objs) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(objs))
	}
	if cs.lists != 2 {
		t.Fatalf("expected 2 list calls, got %d", cs.lists)
	}
}

func TestCollectAppliesMatch(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(3)
	for i := 0; i < 10; i++ {
		_ = mem.Put(ctx, fmt.Sprintf("k%02d", i), []byte("{}"), ContentTypeJSON)
	}

	even := func(key string) bool { return (key[len(key)-1]-'0')%2 == 0 }
	objs, err := Collect(ctx, mem, "k", 0, even)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(objs) != 5 {
		t.Fatalf("expected 5 even keys, got %d", len(objs))
	}
}

type failingStore struct{ ObjectStore }

func (failingStore) List(context.Context, string, string) (Page, error) {
	return Page{}, &Error{Op: "list", Err: errors.New("unavailable")}
}

func TestCollectReturnsListError(t *testing.T) {
	_, err := Collect(context.Background(), failingStore{}, "", 0, nil)
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}
