package app

import (
	"context"
	"fmt"
	"time"

	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
)

// ProgressTracker reads and partially updates per-enrollment progress records.
type ProgressTracker struct {
	store docstore.Store
	now   func() time.Time
}

func NewProgressTracker(store docstore.Store) *ProgressTracker {
	return NewProgressTrackerWithClock(store, time.Now)
}

// NewProgressTrackerWithClock is for deterministic timestamps in tests.
func NewProgressTrackerWithClock(store docstore.Store, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{store: store, now: now}
}

// GetProgress returns the stored record, or a zero record if none exists.
// It only fails when the store does.
func (t *ProgressTracker) GetProgress(ctx context.Context, learnerID, courseID string) (domain.ProgressRecord, error) {
	doc, err := t.store.Get(ctx, docstore.ProgressPath(learnerID, courseID))
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("load progress: %w", err)
	}
	return progressFromDocument(doc)
}

// UpdateProgress merges the supplied fields into the record, stamps
// lastUpdated, and refreshes the enrollment's lastAccessed marker. Both
// documents are written in one atomic batch.
func (t *ProgressTracker) UpdateProgress(ctx context.Context, update domain.PartialProgressUpdate) (domain.ProgressRecord, error) {
	if update.LearnerID == "" || update.CourseID == "" {
		return domain.ProgressRecord{}, fmt.Errorf("%w: username and courseId are required", domain.ErrValidation)
	}
	if err := validIDs(update.LearnerID, update.CourseID); err != nil {
		return domain.ProgressRecord{}, err
	}

	fields, err := updateFields(update)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	stamp := docstore.MustEncode(domain.FormatTimestamp(t.now()))
	fields["lastUpdated"] = stamp

	err = t.store.Apply(ctx,
		docstore.Write{Kind: docstore.WriteUpdate, Path: docstore.ProgressPath(update.LearnerID, update.CourseID), Fields: fields},
		docstore.Write{Kind: docstore.WriteUpdate, Path: docstore.LastAccessedPath(update.LearnerID), Fields: docstore.Document{update.CourseID: stamp}},
	)
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("write progress: %w", err)
	}
	return t.GetProgress(ctx, update.LearnerID, update.CourseID)
}

// OverallProgress reads just the percentage, defaulting to 0.
func (t *ProgressTracker) OverallProgress(ctx context.Context, learnerID, courseID string) (int, error) {
	raw, ok, err := t.store.GetField(ctx, docstore.ProgressPath(learnerID, courseID), "overallProgress")
	if err != nil || !ok {
		return 0, err
	}
	return int(docstore.Document{"v": raw}.Int("v")), nil
}
