package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"knowledgeflow/internal/app"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

func TestEnrollCreatesZeroProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")

	receipt, err := f.enrollments.Enroll(ctx, "alice", "c1")
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if receipt.EnrolledAt != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected enrollment date %q", receipt.EnrolledAt)
	}

	enrolled, err := f.enrollments.IsEnrolled(ctx, "alice", "c1")
	if err != nil || !enrolled {
		t.Fatalf("expected enrolled, got %v %v", enrolled, err)
	}

	p := mustProgress(f.progress.GetProgress(ctx, "alice", "c1"))
	if p.OverallProgress != 0 || p.CertificateUnlocked || len(p.CompletedLessons) != 0 {
		t.Fatalf("expected zero progress, got %+v", p)
	}
	if p.LastUpdated != receipt.EnrolledAt {
		t.Fatalf("expected lastUpdated %q, got %q", receipt.EnrolledAt, p.LastUpdated)
	}

	stamp, ok, err := f.enrollments.LastAccessed(ctx, "alice", "c1")
	if err != nil || !ok || stamp != receipt.EnrolledAt {
		t.Fatalf("expected lastAccessed %q, got %q %v %v", receipt.EnrolledAt, stamp, ok, err)
	}
	if got := studentCount(f.store, "c1"); got != 1 {
		t.Fatalf("expected 1 student, got %d", got)
	}
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")

	if _, err := f.enrollments.Enroll(ctx, "alice", "c1"); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	done := true
	if _, err := f.progress.UpdateProgress(ctx, domain.PartialProgressUpdate{
		LearnerID: "alice", CourseID: "c1", OverallProgress: intPtr(40), CertificateUnlocked: &done,
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	later := app.NewEnrollmentManagerWithClock(f.store, f.catalog, nil, func() time.Time { return fixedNow.Add(time.Hour) })
	if _, err := later.Enroll(ctx, "alice", "c1"); !errors.Is(err, domain.ErrAlreadyEnrolled) {
		t.Fatalf("expected already enrolled, got %v", err)
	}
	raw, ok, err := f.store.GetField(ctx, docstore.EnrollmentsPath("alice"), "c1")
	if err != nil || !ok {
		t.Fatalf("expected enrollment entry, got %v %v", ok, err)
	}
	var enrolledAt string
	if err := json.Unmarshal(raw, &enrolledAt); err != nil || enrolledAt != "2024-05-01T12:00:00Z" {
		t.Fatalf("duplicate enroll must keep enrolledAt, got %q %v", enrolledAt, err)
	}
	p := mustProgress(f.progress.GetProgress(ctx, "alice", "c1"))
	if p.OverallProgress != 40 || !p.CertificateUnlocked {
		t.Fatalf("duplicate enroll must not reset progress, got %+v", p)
	}
	if got := studentCount(f.store, "c1"); got != 1 {
		t.Fatalf("duplicate enroll must not bump students, got %d", got)
	}
}

func TestConcurrentEnrollSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.enrollments.Enroll(ctx, "alice", "c1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case !errors.Is(err, domain.ErrAlreadyEnrolled):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful enroll, got %d", successes)
	}
	if got := studentCount(f.store, "c1"); got != 1 {
		t.Fatalf("expected 1 student, got %d", got)
	}
}

func TestListEnrollmentsOrderedByDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture("a", "b", "c")

	ids, err := f.enrollments.ListEnrollments(ctx, "nobody")
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected empty enrollments, got %v %v", ids, err)
	}

	for _, id := range []string{"c", "a", "b"} {
		if _, err := f.enrollments.Enroll(ctx, "alice", id); err != nil {
			t.Fatalf("enroll %s failed: %v", id, err)
		}
	}
	ids, err = f.enrollments.ListEnrollments(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// Same clock for all three, so the id breaks the tie.
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestEnrollRequiresIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")
	cases := []struct{ learner, course string }{
		{"", "c1"},
		{"alice/courses", "c1"},
		{"alice", "c1/lessons"},
		{"alice", "c#1"},
	}
	for _, tc := range cases {
		if _, err := f.enrollments.Enroll(ctx, tc.learner, tc.course); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("enroll(%q, %q): expected validation error, got %v", tc.learner, tc.course, err)
		}
	}
	if _, err := f.progress.UpdateProgress(ctx, domain.PartialProgressUpdate{
		LearnerID: "alice/x", CourseID: "c1", OverallProgress: intPtr(10),
	}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error on progress update, got %v", err)
	}
	if ids, _ := f.enrollments.ListEnrollments(ctx, "alice"); len(ids) != 0 {
		t.Fatalf("rejected enrollments must write nothing, got %v", ids)
	}
}

func TestListEnrollmentsLogsUnreadableDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1", "c2")
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	enrollments := app.NewEnrollmentManagerWithClock(f.store, f.catalog, log, func() time.Time { return fixedNow })

	if _, err := enrollments.Enroll(ctx, "alice", "c1"); err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	_ = f.store.Update(ctx, docstore.EnrollmentsPath("alice"), docstore.Document{"c2": []byte("42")})

	ids, err := enrollments.ListEnrollments(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both enrollments listed, got %v", ids)
	}
	entries := logs.FilterMessage("unreadable enrollment date").All()
	if len(entries) != 1 || entries[0].ContextMap()["course_id"] != "c2" {
		t.Fatalf("expected one warning for c2, got %v", entries)
	}
}
