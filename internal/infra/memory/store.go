package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"knowledgeflow/internal/docstore"
)

// Store is an in-process implementation of docstore.Store, used in dev mode and tests.
type Store struct {
	mu   sync.RWMutex
	docs map[string]docstore.Document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]docstore.Document)}
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := check(ctx, path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.docs[path]), nil
}

func (s *Store) GetField(ctx context.Context, path, field string) (json.RawMessage, bool, error) {
	if err := check(ctx, path); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[path][field]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

func (s *Store) Set(ctx context.Context, path string, doc docstore.Document) error {
	return s.Apply(ctx, docstore.Write{Kind: docstore.WriteSet, Path: path, Fields: doc})
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Document) error {
	return s.Apply(ctx, docstore.Write{Kind: docstore.WriteUpdate, Path: path, Fields: fields})
}

func (s *Store) SetFieldIfAbsent(ctx context.Context, path, field string, value json.RawMessage) (bool, error) {
	if err := check(ctx, path); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		doc = make(docstore.Document)
		s.docs[path] = doc
	}
	if _, exists := doc[field]; exists {
		return false, nil
	}
	doc[field] = append(json.RawMessage(nil), value...)
	return true, nil
}

func (s *Store) DeleteField(ctx context.Context, path, field string) error {
	if err := check(ctx, path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		return nil
	}
	delete(doc, field)
	if len(doc) == 0 {
		delete(s.docs, path)
	}
	return nil
}

func (s *Store) IncrementField(ctx context.Context, path, field string, delta int64) (int64, error) {
	if err := check(ctx, path); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path]
	if !ok {
		doc = make(docstore.Document)
		s.docs[path] = doc
	}
	next := doc.Int(field) + delta
	doc[field] = json.RawMessage(strconv.FormatInt(next, 10))
	return next, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := check(ctx, path); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[path]) > 0, nil
}

func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := check(ctx, path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(path), nil
}

func (s *Store) childrenLocked(path string) []string {
	names := make([]string, 0)
	for key := range s.docs {
		if parent, name := docstore.Parent(key); parent == path {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) QueryEqual(ctx context.Context, collection, field string, value any) (map[string]docstore.Document, error) {
	if err := check(ctx, collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]docstore.Document)
	for _, name := range s.childrenLocked(collection) {
		doc := s.docs[docstore.Join(collection, name)]
		if doc.Matches(field, value) {
			out[name] = clone(doc)
		}
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, writes ...docstore.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, w := range writes {
		if err := docstore.ValidatePath(w.Path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		switch w.Kind {
		case docstore.WriteSet:
			if len(w.Fields) == 0 {
				delete(s.docs, w.Path)
				continue
			}
			s.docs[w.Path] = clone(w.Fields)
		case docstore.WriteUpdate:
			if len(w.Fields) == 0 {
				continue
			}
			doc, ok := s.docs[w.Path]
			if !ok {
				doc = make(docstore.Document, len(w.Fields))
				s.docs[w.Path] = doc
			}
			for k, v := range w.Fields {
				doc[k] = append(json.RawMessage(nil), v...)
			}
		}
	}
	return nil
}

func check(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return docstore.ValidatePath(path)
}

func clone(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc))
	for k, v := range doc {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
