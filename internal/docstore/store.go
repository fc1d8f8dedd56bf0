// Package docstore defines the hierarchical document store the services share.
//
// A document is a flat map of field name to JSON value addressed by a
// slash-joined path such as "learners/alice/progress/c1". Child documents live
// at longer paths; a parent never embeds them.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable is returned when the store cannot answer, including when a call exceeds its deadline.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("invalid document path")
)

// Document is a flat set of JSON-encoded fields. An empty document means the path does not exist.
type Document map[string]json.RawMessage

// WriteKind selects how a batched write is applied.
type WriteKind int

const (
	// WriteSet replaces the whole document.
	WriteSet WriteKind = iota
	// WriteUpdate merges the given fields into the document.
	WriteUpdate
)

// Write is one entry of an atomic multi-path batch.
type Write struct {
	Kind   WriteKind
	Path   string
	Fields Document
}

// Store is the blocking facade over the document database. Every call honors ctx.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	GetField(ctx context.Context, path, field string) (json.RawMessage, bool, error)
	Set(ctx context.Context, path string, doc Document) error
	Update(ctx context.Context, path string, fields Document) error
	// SetFieldIfAbsent writes field only if it is not already present and reports whether it wrote.
	SetFieldIfAbsent(ctx context.Context, path, field string, value json.RawMessage) (bool, error)
	DeleteField(ctx context.Context, path, field string) error
	// IncrementField atomically adds delta to an integer field, treating a missing field as zero.
	IncrementField(ctx context.Context, path, field string, delta int64) (int64, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Children lists the names of direct child documents of path, sorted.
	Children(ctx context.Context, path string) ([]string, error)
	// QueryEqual returns the direct children of collection whose field equals value, keyed by child name.
	QueryEqual(ctx context.Context, collection, field string, value any) (map[string]Document, error)
	// Apply commits all writes atomically: either every write lands or none does.
	Apply(ctx context.Context, writes ...Write) error
}

// Join builds a document path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath rejects empty paths and empty or reserved segments.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.ContainsAny(seg, "#") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateSegment rejects identifiers that cannot stand as a single path
// segment. Usernames and course ids are embedded in paths, so a "/" would
// address another document.
func ValidateSegment(id string) error {
	if id == "" || strings.ContainsAny(id, "/#") {
		return fmt.Errorf("%w: segment %q", ErrInvalidPath, id)
	}
	return nil
}

// Parent returns the parent path and the last segment of path.
func Parent(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Encode marshals v into a field value.
func Encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode field: %w", err)
	}
	return raw, nil
}

// MustEncode is Encode for values that always marshal (strings, numbers, plain structs).
func MustEncode(v any) json.RawMessage {
	raw, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// Decode unmarshals a field value into dst.
func (d Document) Decode(field string, dst any) (bool, error) {
	raw, ok := d[field]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode field %s: %w", field, err)
	}
	return true, nil
}

// String returns a string field, or "" when missing or not a string.
func (d Document) String(field string) string {
	var s string
	if _, err := d.Decode(field, &s); err != nil {
		return ""
	}
	return s
}

// Int returns an integer field, or 0 when missing or not numeric.
func (d Document) Int(field string) int64 {
	var n json.Number
	raw, ok := d[field]
	if !ok {
		return 0
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

// Matches reports whether the field holds the JSON encoding of value.
func (d Document) Matches(field string, value any) bool {
	raw, ok := d[field]
	if !ok {
		return false
	}
	var got, want any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	wantRaw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(wantRaw, &want); err != nil {
		return false
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}
