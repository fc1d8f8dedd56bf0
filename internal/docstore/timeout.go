package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WithTimeout wraps a store so every call is bounded by d. An expired deadline
// is reported as ErrUnavailable; cancelling the context releases the pending
// call in the underlying client.
func WithTimeout(inner Store, d time.Duration) Store {
	if d <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: d}
}

type timeoutStore struct {
	inner   Store
	timeout time.Duration
}

func (s *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func mapDeadline(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return err
}

func (s *timeoutStore) Get(ctx context.Context, path string) (Document, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	doc, err := s.inner.Get(ctx, path)
	return doc, mapDeadline(ctx, "get", err)
}

func (s *timeoutStore) GetField(ctx context.Context, path, field string) (json.RawMessage, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	raw, ok, err := s.inner.GetField(ctx, path, field)
	return raw, ok, mapDeadline(ctx, "get field", err)
}

func (s *timeoutStore) Set(ctx context.Context, path string, doc Document) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return mapDeadline(ctx, "set", s.inner.Set(ctx, path, doc))
}

func (s *timeoutStore) Update(ctx context.Context, path string, fields Document) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return mapDeadline(ctx, "update", s.inner.Update(ctx, path, fields))
}

func (s *timeoutStore) SetFieldIfAbsent(ctx context.Context, path, field string, value json.RawMessage) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ok, err := s.inner.SetFieldIfAbsent(ctx, path, field, value)
	return ok, mapDeadline(ctx, "set if absent", err)
}

func (s *timeoutStore) DeleteField(ctx context.Context, path, field string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return mapDeadline(ctx, "delete field", s.inner.DeleteField(ctx, path, field))
}

func (s *timeoutStore) IncrementField(ctx context.Context, path, field string, delta int64) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.inner.IncrementField(ctx, path, field, delta)
	return n, mapDeadline(ctx, "increment", err)
}

func (s *timeoutStore) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ok, err := s.inner.Exists(ctx, path)
	return ok, mapDeadline(ctx, "exists", err)
}

func (s *timeoutStore) Children(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	names, err := s.inner.Children(ctx, path)
	return names, mapDeadline(ctx, "children", err)
}

func (s *timeoutStore) QueryEqual(ctx context.Context, collection, field string, value any) (map[string]Document, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	docs, err := s.inner.QueryEqual(ctx, collection, field, value)
	return docs, mapDeadline(ctx, "query", err)
}

func (s *timeoutStore) Apply(ctx context.Context, writes ...Write) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return mapDeadline(ctx, "apply", s.inner.Apply(ctx, writes...))
}
