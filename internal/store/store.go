// Package store provides a minimal blob store abstraction (put, get, paged
// list) and its backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ContentTypeJSON is the content type used for weather documents.
const ContentTypeJSON = "application/json"

// ObjectInfo describes a stored object without its body.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Page is one page of a listing. NextToken is empty on the last page.
type Page struct {
	Objects   []ObjectInfo
	NextToken string
}

// ObjectStore is the contract every backend satisfies. Objects are written
// once and never updated in place by this module.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix, token string) (Page, error)
}

// Error is a failed store operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Collect lists every object under prefix, following continuation tokens.
// Only objects accepted by match (nil accepts all) are kept. When limit > 0,
// no further page is requested once limit objects are held.
//
// On a list failure the objects gathered so far are returned with the error.
func Collect(ctx context.Context, s ObjectStore, prefix string, limit int, match func(key string) bool) ([]ObjectInfo, error) {
	var (
		out   []ObjectInfo
		token string
	)

	for {
		page, err := s.List(ctx, prefix, token)
		if err != nil {
			return out, err
		}

		for _, obj := range page.Objects {
			if match != nil && !match(obj.Key) {
				continue
			}
			out = append(out, obj)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		if page.NextToken == "" {
			return out, nil
		}
		token = page.NextToken
	}
}
