package app_test

import (
	"context"
	"testing"
	"time"

	"knowledgeflow/internal/app"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
)

func TestBuildViewEmpty(t *testing.T) {
	f := newFixture("c1")
	view := app.NewViewBuilder(f.enrollments, f.progress, f.catalog, nil)

	rows, err := view.BuildView(context.Background(), "alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil view, got %#v", rows)
	}
}

func TestBuildViewSortsByLastAccessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture("a", "b", "c")
	for _, id := range []string{"a", "b", "c"} {
		if _, err := f.enrollments.Enroll(ctx, "alice", id); err != nil {
			t.Fatalf("enroll %s failed: %v", id, err)
		}
	}
	later := app.NewProgressTrackerWithClock(f.store, func() time.Time { return fixedNow.Add(time.Minute) })
	if _, err := later.UpdateProgress(ctx, domain.PartialProgressUpdate{
		LearnerID: "alice", CourseID: "b", OverallProgress: intPtr(75),
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	view := app.NewViewBuilder(f.enrollments, f.progress, f.catalog, nil)
	rows, err := view.BuildView(ctx, "alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != "b" || rows[0].Progress != 75 || rows[0].LastAccessed != "2024-05-01T12:01:00Z" {
		t.Fatalf("expected b first with progress 75, got %+v", rows[0])
	}
	if rows[1].ID != "a" || rows[2].ID != "c" {
		t.Fatalf("expected ties broken by course id, got %s, %s", rows[1].ID, rows[2].ID)
	}
	if rows[0].Title != "Course b" || rows[0].ThumbnailURL != "https://img/b" {
		t.Fatalf("expected metadata joined, got %+v", rows[0].CourseSummary)
	}
}

func TestBuildViewSkipsDeletedCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture("a", "gone")
	_, _ = f.enrollments.Enroll(ctx, "alice", "a")
	_, _ = f.enrollments.Enroll(ctx, "alice", "gone")
	_ = f.store.Set(ctx, docstore.CoursePath("gone"), nil)

	rows, err := app.NewViewBuilder(f.enrollments, f.progress, f.catalog, nil).BuildView(ctx, "alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "a" {
		t.Fatalf("expected only course a, got %+v", rows)
	}
}

func TestBuildViewDefaultsMissingMarkers(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")
	_, _ = f.enrollments.Enroll(ctx, "alice", "c1")
	_ = f.store.Set(ctx, docstore.LastAccessedPath("alice"), nil)
	_ = f.store.Set(ctx, docstore.ProgressPath("alice", "c1"), nil)

	viewNow := fixedNow.Add(24 * time.Hour)
	rows, err := app.NewViewBuilder(f.enrollments, f.progress, f.catalog, nil, app.WithViewClock(func() time.Time { return viewNow })).
		BuildView(ctx, "alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Progress != 0 || rows[0].LastAccessed != "2024-05-02T12:00:00Z" {
		t.Fatalf("expected defaults, got %+v", rows)
	}
}

// slowCatalog never answers metadata requests before the caller gives up.
type slowCatalog struct{ app.CourseCatalog }

func (slowCatalog) Metadata(ctx context.Context, courseID string) (domain.CourseSummary, error) {
	<-ctx.Done()
	return domain.CourseSummary{}, ctx.Err()
}

func TestBuildViewFallsBackOnTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture("c1")
	_, _ = f.enrollments.Enroll(ctx, "alice", "c1")

	view := app.NewViewBuilder(f.enrollments, f.progress, slowCatalog{f.catalog}, nil,
		app.WithCourseTimeout(50*time.Millisecond), app.WithFanoutLimit(2))

	start := time.Now()
	rows, err := view.BuildView(ctx, "alice")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("view took too long: %v", elapsed)
	}
	if len(rows) != 1 || rows[0].ID != "c1" || rows[0].Title != "" {
		t.Fatalf("expected id-only fallback row, got %+v", rows)
	}
	if rows[0].LastAccessed != "2024-05-01T12:00:00Z" {
		t.Fatalf("expected stored lastAccessed despite metadata timeout, got %q", rows[0].LastAccessed)
	}
}
