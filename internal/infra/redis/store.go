package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"knowledgeflow/internal/docstore"
)

// Store keeps each document in a Redis hash and indexes children per parent.
// Layout:
//
//	HSET {prefix}{path} {field} {json}
//	SADD {prefix}{parent}#children {name}
type Store struct {
	client redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(path string) string {
	return s.prefix + path
}

func (s *Store) childrenKey(path string) string {
	return s.prefix + path + "#children"
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, s.key(path)).Result()
	if err != nil {
		return nil, wrap("hgetall", path, err)
	}
	return toDocument(fields), nil
}

func (s *Store) GetField(ctx context.Context, path, field string) (json.RawMessage, bool, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return nil, false, err
	}
	raw, err := s.client.HGet(ctx, s.key(path), field).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("hget", path, err)
	}
	return json.RawMessage(raw), true, nil
}

func (s *Store) Set(ctx context.Context, path string, doc docstore.Document) error {
	return s.Apply(ctx, docstore.Write{Kind: docstore.WriteSet, Path: path, Fields: doc})
}

func (s *Store) Update(ctx context.Context, path string, fields docstore.Document) error {
	return s.Apply(ctx, docstore.Write{Kind: docstore.WriteUpdate, Path: path, Fields: fields})
}

func (s *Store) SetFieldIfAbsent(ctx context.Context, path, field string, value json.RawMessage) (bool, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return false, err
	}
	var set *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.HSetNX(ctx, s.key(path), field, string(value))
		s.indexChild(ctx, pipe, path)
		return nil
	})
	if err != nil {
		return false, wrap("hsetnx", path, err)
	}
	return set.Val(), nil
}

func (s *Store) DeleteField(ctx context.Context, path, field string) error {
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, s.key(path), field).Err(); err != nil {
		return wrap("hdel", path, err)
	}
	n, err := s.client.Exists(ctx, s.key(path)).Result()
	if err != nil {
		return wrap("exists", path, err)
	}
	if n == 0 {
		parent, name := docstore.Parent(path)
		if parent != "" {
			if err := s.client.SRem(ctx, s.childrenKey(parent), name).Err(); err != nil {
				return wrap("srem", path, err)
			}
		}
	}
	return nil
}

func (s *Store) IncrementField(ctx context.Context, path, field string, delta int64) (int64, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return 0, err
	}
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, s.key(path), field, delta)
		s.indexChild(ctx, pipe, path)
		return nil
	})
	if err != nil {
		return 0, wrap("hincrby", path, err)
	}
	return incr.Val(), nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, s.key(path)).Result()
	if err != nil {
		return false, wrap("exists", path, err)
	}
	return n > 0, nil
}

func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return nil, err
	}
	names, err := s.client.SMembers(ctx, s.childrenKey(path)).Result()
	if err != nil {
		return nil, wrap("smembers", path, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) QueryEqual(ctx context.Context, collection, field string, value any) (map[string]docstore.Document, error) {
	names, err := s.Children(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]docstore.Document)
	if len(names) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(names))
	pipe := s.client.Pipeline()
	for i, name := range names {
		cmds[i] = pipe.HGetAll(ctx, s.key(docstore.Join(collection, name)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrap("query", collection, err)
	}
	for i, name := range names {
		doc := toDocument(cmds[i].Val())
		if doc.Matches(field, value) {
			out[name] = doc
		}
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, writes ...docstore.Write) error {
	for _, w := range writes {
		if err := docstore.ValidatePath(w.Path); err != nil {
			return err
		}
	}
	if len(writes) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			key := s.key(w.Path)
			switch w.Kind {
			case docstore.WriteSet:
				pipe.Del(ctx, key)
				if len(w.Fields) == 0 {
					if parent, name := docstore.Parent(w.Path); parent != "" {
						pipe.SRem(ctx, s.childrenKey(parent), name)
					}
					continue
				}
				pipe.HSet(ctx, key, toValues(w.Fields))
				s.indexChild(ctx, pipe, w.Path)
			case docstore.WriteUpdate:
				if len(w.Fields) == 0 {
					continue
				}
				pipe.HSet(ctx, key, toValues(w.Fields))
				s.indexChild(ctx, pipe, w.Path)
			}
		}
		return nil
	})
	if err != nil {
		return wrap("multi", writes[0].Path, err)
	}
	return nil
}

func (s *Store) indexChild(ctx context.Context, pipe redis.Pipeliner, path string) {
	if parent, name := docstore.Parent(path); parent != "" {
		pipe.SAdd(ctx, s.childrenKey(parent), name)
	}
}

func toDocument(fields map[string]string) docstore.Document {
	doc := make(docstore.Document, len(fields))
	for k, v := range fields {
		doc[k] = json.RawMessage(v)
	}
	return doc
}

func toValues(doc docstore.Document) map[string]interface{} {
	values := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		values[k] = string(v)
	}
	return values
}

func wrap(op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("redis %s %q: %w", op, path, err)
	}
	return fmt.Errorf("redis %s %q: %w: %w", op, path, docstore.ErrUnavailable, err)
}
