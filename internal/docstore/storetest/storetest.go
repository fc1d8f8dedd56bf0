// Package storetest holds the behaviour every docstore.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"knowledgeflow/internal/docstore"
)

// Run exercises a backend. newStore must return an empty store on each call.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Helper()
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetReplacesUpdateMerges", func(t *testing.T) { testSetUpdate(t, newStore(t)) })
	t.Run("SetFieldIfAbsent", func(t *testing.T) { testSetFieldIfAbsent(t, newStore(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newStore(t)) })
	t.Run("IncrementField", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("ChildrenAndQuery", func(t *testing.T) { testChildrenAndQuery(t, newStore(t)) })
	t.Run("DeleteField", func(t *testing.T) { testDeleteField(t, newStore(t)) })
	t.Run("Apply", func(t *testing.T) { testApply(t, newStore(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	doc, err := s.Get(ctx, "users/nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
	ok, err := s.Exists(ctx, "users/nobody")
	if err != nil || ok {
		t.Fatalf("expected missing, got %v %v", ok, err)
	}
	_, found, err := s.GetField(ctx, "users/nobody", "email")
	if err != nil || found {
		t.Fatalf("expected missing field, got %v %v", found, err)
	}
}

func testSetUpdate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	path := "courses/c1"
	if err := s.Set(ctx, path, docstore.Document{
		"title":    docstore.MustEncode("Go"),
		"category": docstore.MustEncode("programming"),
	}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Update(ctx, path, docstore.Document{"title": docstore.MustEncode("Go 2")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.String("title") != "Go 2" || doc.String("category") != "programming" {
		t.Fatalf("update should merge, got %v", doc)
	}

	if err := s.Set(ctx, path, docstore.Document{"title": docstore.MustEncode("Rust")}); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc, _ = s.Get(ctx, path)
	if len(doc) != 1 || doc.String("title") != "Rust" {
		t.Fatalf("set should replace, got %v", doc)
	}
	ok, _ := s.Exists(ctx, path)
	if !ok {
		t.Fatalf("expected document to exist")
	}
}

func testSetFieldIfAbsent(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	path := "learners/alice/enrollments"
	ok, err := s.SetFieldIfAbsent(ctx, path, "c1", docstore.MustEncode("t1"))
	if err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	ok, err = s.SetFieldIfAbsent(ctx, path, "c1", docstore.MustEncode("t2"))
	if err != nil || ok {
		t.Fatalf("second claim should lose: %v %v", ok, err)
	}
	doc, _ := s.Get(ctx, path)
	if doc.String("c1") != "t1" {
		t.Fatalf("claim overwritten: %v", doc)
	}
}

func testConcurrentClaim(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetFieldIfAbsent(ctx, "learners/bob/enrollments", "c1", docstore.MustEncode("t"))
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func testIncrement(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	path := "courses/c1"
	_ = s.Set(ctx, path, docstore.Document{"students": docstore.MustEncode(2)})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementField(ctx, path, "students", 1); err != nil {
				t.Errorf("increment: %v", err)
			}
		}()
	}
	wg.Wait()
	doc, _ := s.Get(ctx, path)
	if got := doc.Int("students"); got != 12 {
		t.Fatalf("expected 12 students, got %d", got)
	}
}

func testChildrenAndQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_ = s.Set(ctx, "courses/b", docstore.Document{"creatorUsername": docstore.MustEncode("inst")})
	_ = s.Set(ctx, "courses/a", docstore.Document{"creatorUsername": docstore.MustEncode("inst")})
	_ = s.Set(ctx, "courses/c", docstore.Document{"creatorUsername": docstore.MustEncode("other")})
	_ = s.Set(ctx, "courses/a/lessons", docstore.Document{"l1": docstore.MustEncode("x")})

	names, err := s.Children(ctx, "courses")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Fatalf("unexpected children %v", names)
	}

	docs, err := s.QueryEqual(ctx, "courses", "creatorUsername", "inst")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 || docs["a"] == nil || docs["b"] == nil {
		t.Fatalf("unexpected query result %v", docs)
	}

	_ = s.Set(ctx, "courses/c", nil)
	names, _ = s.Children(ctx, "courses")
	if len(names) != 2 {
		t.Fatalf("deleted document still listed: %v", names)
	}
}

func testDeleteField(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	path := "learners/alice/enrollments"
	_, _ = s.SetFieldIfAbsent(ctx, path, "c1", docstore.MustEncode("t"))
	if err := s.DeleteField(ctx, path, "c1"); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	ok, _ := s.Exists(ctx, path)
	if ok {
		t.Fatalf("expected empty document to be gone")
	}
	names, _ := s.Children(ctx, "learners/alice")
	if len(names) != 0 {
		t.Fatalf("expected no children, got %v", names)
	}
	if err := s.DeleteField(ctx, "learners/ghost/enrollments", "c1"); err != nil {
		t.Fatalf("delete on missing document: %v", err)
	}
}

func testApply(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_ = s.Set(ctx, "learners/alice/lastAccessed", docstore.Document{"c0": docstore.MustEncode("old")})
	err := s.Apply(ctx,
		docstore.Write{Kind: docstore.WriteSet, Path: "learners/alice/progress/c1", Fields: docstore.Document{
			"overallProgress": docstore.MustEncode(0),
		}},
		docstore.Write{Kind: docstore.WriteUpdate, Path: "learners/alice/lastAccessed", Fields: docstore.Document{
			"c1": docstore.MustEncode("now"),
		}},
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	progress, _ := s.Get(ctx, "learners/alice/progress/c1")
	if _, ok := progress["overallProgress"]; !ok {
		t.Fatalf("progress not written: %v", progress)
	}
	accessed, _ := s.Get(ctx, "learners/alice/lastAccessed")
	if accessed.String("c0") != "old" || accessed.String("c1") != "now" {
		t.Fatalf("lastAccessed not merged: %v", accessed)
	}
	names, _ := s.Children(ctx, "learners/alice/progress")
	if len(names) != 1 || names[0] != "c1" {
		t.Fatalf("expected progress child c1, got %v", names)
	}

	err = s.Apply(ctx,
		docstore.Write{Kind: docstore.WriteUpdate, Path: "learners/alice/x", Fields: docstore.Document{"a": docstore.MustEncode(1)}},
		docstore.Write{Kind: docstore.WriteUpdate, Path: "bad//path", Fields: docstore.Document{"a": docstore.MustEncode(1)}},
	)
	if !errors.Is(err, docstore.ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
	if ok, _ := s.Exists(ctx, "learners/alice/x"); ok {
		t.Fatalf("rejected batch must not be partially applied")
	}
}

func testInvalidPath(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	for _, path := range []string{"", "users//x", "a#b"} {
		if _, err := s.Get(ctx, path); !errors.Is(err, docstore.ErrInvalidPath) {
			t.Fatalf("path %q: expected invalid path, got %v", path, err)
		}
	}
}
