package store

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// fakeS3 is a path-style S3 endpoint serving a single bucket from memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	created bool
}

type listResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	KeyCount    int           `xml:"KeyCount"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int64  `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/"+f.bucket)
	key := strings.TrimPrefix(path, "/")

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket, Prefix: prefix}
		keys := make([]string, 0, len(f.objects))
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, listContent{
				Key:          k,
				Size:         int64(len(f.objects[k])),
				LastModified: "2026-02-18T14:05:09.000Z",
			})
		}
		res.KeyCount = len(res.Contents)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)

	case r.Method == http.MethodHead && key == "":
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut && key == "":
		f.created = true
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPut && key != "":
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key != "":
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>`+key+`</Key></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(body)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()

	fake := &fakeS3{bucket: "weather", objects: map[string][]byte{}, types: map[string]string{}}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		HTTPClient:  ts.Client(),
	}
	s := NewS3FromConfig(cfg, S3Options{Bucket: "weather", Endpoint: ts.URL, UsePathStyle: true})
	return s, fake
}

func TestS3PutGetList(t *testing.T) {
	s, fake := newTestS3(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := "2026/02/18/london_140509.json"
	if err := s.Put(ctx, key, []byte(`{"city":"London"}`), ContentTypeJSON); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	fake.mu.Lock()
	ct := fake.types[key]
	fake.mu.Unlock()
	if ct != ContentTypeJSON {
		t.Fatalf("expected content type %q, got %q", ContentTypeJSON, ct)
	}

	body, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != `{"city":"London"}` {
		t.Fatalf("unexpected body %s", body)
	}

	page, err := s.List(ctx, "2026/02/18/", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Objects) != 1 || page.Objects[0].Key != key {
		t.Fatalf("unexpected listing %+v", page.Objects)
	}
	if page.NextToken != "" {
		t.Fatalf("expected no continuation token, got %q", page.NextToken)
	}
}

func TestS3GetMissingIsNotFound(t *testing.T) {
	s, _ := newTestS3(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.Get(ctx, "2026/02/18/nowhere_000000.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3CreateBucket(t *testing.T) {
	s, fake := newTestS3(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := s.BucketExists(ctx)
	if err != nil || exists {
		t.Fatalf("expected missing bucket, got exists=%v err=%v", exists, err)
	}

	if err := s.CreateBucket(ctx); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	fake.mu.Lock()
	created := fake.created
	fake.mu.Unlock()
	if !created {
		t.Fatal("expected bucket to be created")
	}

	if err := s.CreateBucket(ctx); !errors.Is(err, ErrBucketExists) {
		t.Fatalf("expected ErrBucketExists, got %v", err)
	}
}
