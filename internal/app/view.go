package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

const (
	DefaultCourseTimeout = 5 * time.Second
	DefaultFanoutLimit   = 8
)

// ViewBuilder joins a learner's enrollments with course metadata, progress and recency.
type ViewBuilder struct {
	enrollments   *EnrollmentManager
	progress      *ProgressTracker
	catalog       CourseCatalog
	log           *logger.Logger
	now           func() time.Time
	courseTimeout time.Duration
	limit         int
}

type ViewOption func(*ViewBuilder)

// WithCourseTimeout bounds the three fetches made for a single course.
func WithCourseTimeout(d time.Duration) ViewOption {
	return func(b *ViewBuilder) {
		if d > 0 {
			b.courseTimeout = d
		}
	}
}

// WithFanoutLimit caps how many courses are fetched at once.
func WithFanoutLimit(n int) ViewOption {
	return func(b *ViewBuilder) {
		if n > 0 {
			b.limit = n
		}
	}
}

func WithViewClock(now func() time.Time) ViewOption {
	return func(b *ViewBuilder) { b.now = now }
}

func NewViewBuilder(enrollments *EnrollmentManager, progress *ProgressTracker, catalog CourseCatalog, log *logger.Logger, opts ...ViewOption) *ViewBuilder {
	if log == nil {
		log = logger.NewNop()
	}
	b := &ViewBuilder{
		enrollments:   enrollments,
		progress:      progress,
		catalog:       catalog,
		log:           log,
		now:           time.Now,
		courseTimeout: DefaultCourseTimeout,
		limit:         DefaultFanoutLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildView returns one row per enrolled course, most recently accessed first.
// Fetch failures and timeouts degrade the row to defaults instead of failing
// the view; only the enrollment read itself can fail it.
func (b *ViewBuilder) BuildView(ctx context.Context, learnerID string) ([]domain.EnrolledCourseView, error) {
	courseIDs, err := b.enrollments.ListEnrollments(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if len(courseIDs) == 0 {
		return []domain.EnrolledCourseView{}, nil
	}

	rows := make([]*domain.EnrolledCourseView, len(courseIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, courseID := range courseIDs {
		i, courseID := i, courseID
		g.Go(func() error {
			rows[i] = b.buildRow(gctx, learnerID, courseID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]domain.EnrolledCourseView, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			views = append(views, *row)
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].LastAccessed != views[j].LastAccessed {
			return views[i].LastAccessed > views[j].LastAccessed
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

// buildRow returns nil when the catalog says the course no longer exists.
func (b *ViewBuilder) buildRow(ctx context.Context, learnerID, courseID string) *domain.EnrolledCourseView {
	ctx, cancel := context.WithTimeout(ctx, b.courseTimeout)
	defer cancel()

	metaCh := async(ctx, func(ctx context.Context) (domain.CourseSummary, error) {
		return b.catalog.Metadata(ctx, courseID)
	})
	progressCh := async(ctx, func(ctx context.Context) (int, error) {
		return b.progress.OverallProgress(ctx, learnerID, courseID)
	})
	accessedCh := async(ctx, func(ctx context.Context) (string, error) {
		stamp, ok, err := b.enrollments.LastAccessed(ctx, learnerID, courseID)
		if err == nil && !ok {
			err = errNoMarker
		}
		return stamp, err
	})

	row := domain.EnrolledCourseView{CourseSummary: domain.CourseSummary{ID: courseID}}

	meta, err := await(ctx, metaCh)
	switch {
	case errors.Is(err, domain.ErrCourseNotFound):
		return nil
	case err != nil:
		b.log.Warn("course metadata unavailable", "learner", learnerID, "course_id", courseID, "error", err)
	default:
		row.CourseSummary = meta
		row.ID = courseID
	}

	if pct, err := await(ctx, progressCh); err != nil {
		b.log.Warn("progress unavailable", "learner", learnerID, "course_id", courseID, "error", err)
	} else {
		row.Progress = pct
	}

	if stamp, err := await(ctx, accessedCh); err != nil {
		if !errors.Is(err, errNoMarker) {
			b.log.Warn("last accessed unavailable", "learner", learnerID, "course_id", courseID, "error", err)
		}
		row.LastAccessed = domain.FormatTimestamp(b.now())
	} else {
		row.LastAccessed = stamp
	}
	return &row
}

var errNoMarker = errors.New("no last accessed marker")
