package memory

import (
	"context"
	"sync"

	"knowledgeflow/internal/domain"
)

// CourseArchive is an in-process catalog.Archive (useful for tests/demos).
type CourseArchive struct {
	mu      sync.RWMutex
	courses map[string]domain.Course
}

func NewCourseArchive(courses map[string]domain.Course) *CourseArchive {
	copied := make(map[string]domain.Course, len(courses))
	for id, c := range courses {
		copied[id] = c
	}
	return &CourseArchive{courses: copied}
}

func (a *CourseArchive) LoadCourse(_ context.Context, courseID string) (domain.Course, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if course, ok := a.courses[courseID]; ok {
		return course, nil
	}
	return domain.Course{}, domain.ErrCourseNotFound
}

func (a *CourseArchive) SaveCourse(_ context.Context, course domain.Course) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.courses[course.ID] = course
	return nil
}
