package app

import (
	"context"

	"knowledgeflow/internal/domain"
)

// CourseCatalog is the part of the course catalog the enrollment core reads.
type CourseCatalog interface {
	Exists(ctx context.Context, courseID string) (bool, error)
	Metadata(ctx context.Context, courseID string) (domain.CourseSummary, error)
	// IncrementStudents is best-effort; callers log and drop its error.
	IncrementStudents(ctx context.Context, courseID string) error
}
