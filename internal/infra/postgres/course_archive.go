package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"knowledgeflow/internal/domain"
)

// CourseArchive keeps a JSONB copy of every authored course in Postgres.
type CourseArchive struct {
	pool *pgxpool.Pool
}

func NewCourseArchive(pool *pgxpool.Pool) *CourseArchive {
	return &CourseArchive{pool: pool}
}

func (a *CourseArchive) LoadCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM courses WHERE id=$1`, courseID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	var course domain.Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return domain.Course{}, fmt.Errorf("unmarshal course: %w", err)
	}
	course.ID = courseID
	return course, nil
}

func (a *CourseArchive) SaveCourse(ctx context.Context, course domain.Course) error {
	data, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("marshal course: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO courses (id, data, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		course.ID, data, time.UnixMilli(course.CreatedAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	return nil
}
