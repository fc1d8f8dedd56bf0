package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

// EnrollmentManager owns each learner's enrollment set and recency markers.
// Learner and course existence are checked by the caller before Enroll.
type EnrollmentManager struct {
	store   docstore.Store
	catalog CourseCatalog
	log     *logger.Logger
	now     func() time.Time
}

func NewEnrollmentManager(store docstore.Store, catalog CourseCatalog, log *logger.Logger) *EnrollmentManager {
	return NewEnrollmentManagerWithClock(store, catalog, log, time.Now)
}

// NewEnrollmentManagerWithClock is for deterministic timestamps in tests.
func NewEnrollmentManagerWithClock(store docstore.Store, catalog CourseCatalog, log *logger.Logger, now func() time.Time) *EnrollmentManager {
	if log == nil {
		log = logger.NewNop()
	}
	return &EnrollmentManager{store: store, catalog: catalog, log: log, now: now}
}

// IsEnrolled reads the enrollment set from the store on every call.
func (m *EnrollmentManager) IsEnrolled(ctx context.Context, learnerID, courseID string) (bool, error) {
	doc, err := m.store.Get(ctx, docstore.EnrollmentsPath(learnerID))
	if err != nil {
		return false, fmt.Errorf("load enrollments: %w", err)
	}
	_, ok := doc[courseID]
	return ok, nil
}

// Enroll registers learnerID for courseID at most once. A duplicate returns
// domain.ErrAlreadyEnrolled and writes nothing.
func (m *EnrollmentManager) Enroll(ctx context.Context, learnerID, courseID string) (domain.EnrollmentReceipt, error) {
	if learnerID == "" || courseID == "" {
		return domain.EnrollmentReceipt{}, fmt.Errorf("%w: course id and username are required", domain.ErrValidation)
	}
	if err := validIDs(learnerID, courseID); err != nil {
		return domain.EnrollmentReceipt{}, err
	}

	enrolled, err := m.IsEnrolled(ctx, learnerID, courseID)
	if err != nil {
		return domain.EnrollmentReceipt{}, err
	}
	if enrolled {
		return domain.EnrollmentReceipt{}, domain.ErrAlreadyEnrolled
	}

	stamp := domain.FormatTimestamp(m.now())
	encoded := docstore.MustEncode(stamp)

	// The conditional write is what makes enrollment at-most-once across
	// concurrent requests and processes; the read above only skips the write.
	claimed, err := m.store.SetFieldIfAbsent(ctx, docstore.EnrollmentsPath(learnerID), courseID, encoded)
	if err != nil {
		return domain.EnrollmentReceipt{}, fmt.Errorf("claim enrollment: %w", err)
	}
	if !claimed {
		return domain.EnrollmentReceipt{}, domain.ErrAlreadyEnrolled
	}

	initial := domain.NewProgressRecord()
	initial.LastUpdated = stamp
	progressDoc, err := progressDocument(initial)
	if err != nil {
		m.rollback(ctx, learnerID, courseID)
		return domain.EnrollmentReceipt{}, err
	}
	err = m.store.Apply(ctx,
		docstore.Write{Kind: docstore.WriteSet, Path: docstore.ProgressPath(learnerID, courseID), Fields: progressDoc},
		docstore.Write{Kind: docstore.WriteUpdate, Path: docstore.LastAccessedPath(learnerID), Fields: docstore.Document{courseID: encoded}},
	)
	if err != nil {
		m.rollback(ctx, learnerID, courseID)
		return domain.EnrollmentReceipt{}, fmt.Errorf("initialize enrollment: %w", err)
	}

	if err := m.catalog.IncrementStudents(ctx, courseID); err != nil {
		m.log.Warn("student count increment dropped", "course_id", courseID, "error", err)
	}

	return domain.EnrollmentReceipt{LearnerID: learnerID, CourseID: courseID, EnrolledAt: stamp}, nil
}

func (m *EnrollmentManager) rollback(ctx context.Context, learnerID, courseID string) {
	if err := m.store.DeleteField(context.WithoutCancel(ctx), docstore.EnrollmentsPath(learnerID), courseID); err != nil {
		m.log.Error("enrollment rollback failed", "learner", learnerID, "course_id", courseID, "error", err)
	}
}

// ListEnrollments returns the learner's course ids ordered by enrollment time, then id.
// A learner who never enrolled gets an empty slice.
func (m *EnrollmentManager) ListEnrollments(ctx context.Context, learnerID string) ([]string, error) {
	doc, err := m.store.Get(ctx, docstore.EnrollmentsPath(learnerID))
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	type entry struct{ id, at string }
	entries := make([]entry, 0, len(doc))
	for id, raw := range doc {
		var at string
		if err := json.Unmarshal(raw, &at); err != nil {
			m.log.Warn("unreadable enrollment date", "learner", learnerID, "course_id", id, "error", err)
		}
		entries = append(entries, entry{id: id, at: at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at != entries[j].at {
			return entries[i].at < entries[j].at
		}
		return entries[i].id < entries[j].id
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// LastAccessed returns the recency marker for one enrollment.
func (m *EnrollmentManager) LastAccessed(ctx context.Context, learnerID, courseID string) (string, bool, error) {
	raw, ok, err := m.store.GetField(ctx, docstore.LastAccessedPath(learnerID), courseID)
	if err != nil || !ok {
		return "", false, err
	}
	var stamp string
	if err := json.Unmarshal(raw, &stamp); err != nil {
		return "", false, fmt.Errorf("decode last accessed: %w", err)
	}
	return stamp, true, nil
}

// validIDs keeps learner and course ids to one path segment each.
func validIDs(learnerID, courseID string) error {
	if err := docstore.ValidateSegment(learnerID); err != nil {
		return fmt.Errorf("%w: invalid username %q", domain.ErrValidation, learnerID)
	}
	if err := docstore.ValidateSegment(courseID); err != nil {
		return fmt.Errorf("%w: invalid course id %q", domain.ErrValidation, courseID)
	}
	return nil
}
