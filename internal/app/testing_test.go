package app_test

import (
	"context"
	"time"

	"knowledgeflow/internal/app"
	"knowledgeflow/internal/catalog"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/infra/memory"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store       *memory.Store
	catalog     *catalog.Catalog
	enrollments *app.EnrollmentManager
	progress    *app.ProgressTracker
}

func newFixture(courseIDs ...string) *fixture {
	ctx := context.Background()
	store := memory.NewStore()
	for _, id := range courseIDs {
		_ = store.Set(ctx, docstore.CoursePath(id), docstore.Document{
			"title":           docstore.MustEncode("Course " + id),
			"description":     docstore.MustEncode("About " + id),
			"category":        docstore.MustEncode("programming"),
			"thumbnailUrl":    docstore.MustEncode("https://img/" + id),
			"creatorUsername": docstore.MustEncode("inst"),
			"students":        docstore.MustEncode(0),
		})
	}
	cat := catalog.New(store, nil, nil)
	return &fixture{
		store:       store,
		catalog:     cat,
		enrollments: app.NewEnrollmentManagerWithClock(store, cat, nil, func() time.Time { return fixedNow }),
		progress:    app.NewProgressTrackerWithClock(store, func() time.Time { return fixedNow }),
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

var _ app.CourseCatalog = (*catalog.Catalog)(nil)

func studentCount(store *memory.Store, courseID string) int64 {
	doc, _ := store.Get(context.Background(), docstore.CoursePath(courseID))
	return doc.Int("students")
}

func mustProgress(p domain.ProgressRecord, err error) domain.ProgressRecord {
	if err != nil {
		panic(err)
	}
	return p
}
