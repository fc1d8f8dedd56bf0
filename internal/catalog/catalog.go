// Package catalog owns course documents: authoring for instructors, browsing
// for learners, and the existence/metadata/student-counter contract the
// enrollment core depends on.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

// archiveLoadTimeout bounds a shared archive load, which outlives the request that started it.
const archiveLoadTimeout = 5 * time.Second

// Archive is a durable copy of authored courses (e.g. Postgres) consulted when the document store misses.
type Archive interface {
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
	SaveCourse(ctx context.Context, course domain.Course) error
}

type Catalog struct {
	store   docstore.Store
	archive Archive
	log     *logger.Logger
	now     func() time.Time
	newID   func() string
	sf      singleflight.Group
}

// New builds a catalog. archive may be nil.
func New(store docstore.Store, archive Archive, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.NewNop()
	}
	return &Catalog{
		store:   store,
		archive: archive,
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Exists reports whether the course is known.
func (c *Catalog) Exists(ctx context.Context, courseID string) (bool, error) {
	if courseID == "" {
		return false, nil
	}
	_, err := c.courseDoc(ctx, courseID)
	if errors.Is(err, domain.ErrCourseNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Metadata returns the summary fields of a course.
func (c *Catalog) Metadata(ctx context.Context, courseID string) (domain.CourseSummary, error) {
	doc, err := c.courseDoc(ctx, courseID)
	if err != nil {
		return domain.CourseSummary{}, err
	}
	return summaryFromDoc(courseID, doc), nil
}

// IncrementStudents bumps the denormalized enrollment counter. The increment is atomic in the store.
func (c *Catalog) IncrementStudents(ctx context.Context, courseID string) error {
	if err := validID("course id", courseID); err != nil {
		return err
	}
	if _, err := c.store.IncrementField(ctx, docstore.CoursePath(courseID), "students", 1); err != nil {
		return fmt.Errorf("increment students for %s: %w", courseID, err)
	}
	return nil
}

// Get returns the full course with lessons ordered by their order field.
func (c *Catalog) Get(ctx context.Context, courseID string) (domain.Course, error) {
	doc, err := c.courseDoc(ctx, courseID)
	if err != nil {
		return domain.Course{}, err
	}
	course := courseFromDoc(courseID, doc)

	lessons, err := c.store.Get(ctx, docstore.LessonsPath(courseID))
	if err != nil {
		return domain.Course{}, fmt.Errorf("load lessons: %w", err)
	}
	for id := range lessons {
		var lesson domain.Lesson
		if _, err := lessons.Decode(id, &lesson); err != nil {
			return domain.Course{}, err
		}
		lesson.ID = id
		course.Lessons = append(course.Lessons, lesson)
	}
	sort.Slice(course.Lessons, func(i, j int) bool {
		if course.Lessons[i].Order != course.Lessons[j].Order {
			return course.Lessons[i].Order < course.Lessons[j].Order
		}
		return course.Lessons[i].ID < course.Lessons[j].ID
	})

	quizzes, err := c.store.Get(ctx, docstore.QuizzesPath(courseID))
	if err != nil {
		return domain.Course{}, fmt.Errorf("load quizzes: %w", err)
	}
	for id := range quizzes {
		var quiz domain.Quiz
		if _, err := quizzes.Decode(id, &quiz); err != nil {
			return domain.Course{}, err
		}
		quiz.ID = id
		course.Quizzes = append(course.Quizzes, quiz)
	}
	sort.Slice(course.Quizzes, func(i, j int) bool { return course.Quizzes[i].ID < course.Quizzes[j].ID })
	return course, nil
}

// Create stores a new course authored by course.CreatorUsername and links it to the author.
func (c *Catalog) Create(ctx context.Context, course domain.Course) (domain.Course, error) {
	if course.Title == "" || course.Description == "" || course.ThumbnailURL == "" || course.CreatorUsername == "" {
		return domain.Course{}, fmt.Errorf("%w: missing required course information", domain.ErrValidation)
	}
	if err := validID("creator username", course.CreatorUsername); err != nil {
		return domain.Course{}, err
	}
	if course.ID == "" {
		course.ID = c.newID()
	} else if err := validID("course id", course.ID); err != nil {
		return domain.Course{}, err
	}
	now := c.now()
	course.CreatedAt = now.UnixMilli()
	course.Students = 0
	for i := range course.Lessons {
		if course.Lessons[i].ID == "" {
			course.Lessons[i].ID = c.newID()
		} else if err := validID("lesson id", course.Lessons[i].ID); err != nil {
			return domain.Course{}, err
		}
	}
	for i := range course.Quizzes {
		if course.Quizzes[i].ID == "" {
			course.Quizzes[i].ID = c.newID()
		} else if err := validID("quiz id", course.Quizzes[i].ID); err != nil {
			return domain.Course{}, err
		}
	}

	writes := courseWrites(course)
	writes = append(writes, docstore.Write{
		Kind:   docstore.WriteUpdate,
		Path:   docstore.UserCoursesPath(course.CreatorUsername),
		Fields: docstore.Document{course.ID: docstore.MustEncode(domain.FormatTimestamp(now))},
	})
	if err := c.store.Apply(ctx, writes...); err != nil {
		return domain.Course{}, fmt.Errorf("store course: %w", err)
	}

	if c.archive != nil {
		if err := c.archive.SaveCourse(ctx, course); err != nil {
			c.log.Warn("course archive write failed", "course_id", course.ID, "error", err)
		}
	}
	return course, nil
}

// Browse lists course summaries. category "all" or "" disables the category
// filter; search matches title, description or creator, case-insensitively.
func (c *Catalog) Browse(ctx context.Context, category, search string) ([]domain.CourseSummary, error) {
	ids, err := c.store.Children(ctx, docstore.CoursesCollection)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	search = strings.ToLower(strings.TrimSpace(search))
	category = strings.TrimSpace(category)

	type entry struct {
		summary   domain.CourseSummary
		createdAt int64
	}
	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		doc, err := c.store.Get(ctx, docstore.CoursePath(id))
		if err != nil {
			return nil, fmt.Errorf("load course %s: %w", id, err)
		}
		if len(doc) == 0 {
			continue
		}
		summary := summaryFromDoc(id, doc)
		if category != "" && !strings.EqualFold(category, "all") && !strings.EqualFold(summary.Category, category) {
			continue
		}
		if search != "" && !matchesSearch(summary, search) {
			continue
		}
		entries = append(entries, entry{summary: summary, createdAt: doc.Int("createdAt")})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].createdAt != entries[j].createdAt {
			return entries[i].createdAt > entries[j].createdAt
		}
		return entries[i].summary.ID < entries[j].summary.ID
	})

	out := make([]domain.CourseSummary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out, nil
}

// ListByCreator returns the courses an instructor authored, keyed by course id. Lessons and quizzes are omitted.
func (c *Catalog) ListByCreator(ctx context.Context, username string) (map[string]domain.Course, error) {
	docs, err := c.store.QueryEqual(ctx, docstore.CoursesCollection, "creatorUsername", username)
	if err != nil {
		return nil, fmt.Errorf("query courses by creator: %w", err)
	}
	out := make(map[string]domain.Course, len(docs))
	for id, doc := range docs {
		out[id] = courseFromDoc(id, doc)
	}
	return out, nil
}

// courseDoc reads the course document, falling back to the archive on a miss.
// Archive loads are collapsed per course and written through to the store.
func (c *Catalog) courseDoc(ctx context.Context, courseID string) (docstore.Document, error) {
	if courseID == "" {
		return nil, domain.ErrCourseNotFound
	}
	if err := validID("course id", courseID); err != nil {
		return nil, err
	}
	doc, err := c.store.Get(ctx, docstore.CoursePath(courseID))
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	if len(doc) > 0 {
		return doc, nil
	}
	if c.archive == nil {
		return nil, domain.ErrCourseNotFound
	}

	result, err, _ := c.sf.Do(courseID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveLoadTimeout)
		defer cancel()
		course, err := c.archive.LoadCourse(loadCtx, courseID)
		if err != nil {
			return nil, err
		}
		if err := c.store.Apply(loadCtx, courseWrites(course)...); err != nil {
			return nil, fmt.Errorf("restore course %s: %w", courseID, err)
		}
		c.log.Info("course restored from archive", "course_id", courseID)
		return courseDocument(course), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(docstore.Document), nil
}

func validID(what, id string) error {
	if err := docstore.ValidateSegment(id); err != nil {
		return fmt.Errorf("%w: invalid %s %q", domain.ErrValidation, what, id)
	}
	return nil
}

func matchesSearch(s domain.CourseSummary, search string) bool {
	return strings.Contains(strings.ToLower(s.Title), search) ||
		strings.Contains(strings.ToLower(s.Description), search) ||
		strings.Contains(strings.ToLower(s.CreatorUsername), search)
}
