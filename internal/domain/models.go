package domain

// Account is a registered user as returned by login. The password hash never leaves the accounts package.
type Account struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Courses  []string `json:"courses,omitempty"`
}

// Lesson is a single unit of course content.
type Lesson struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// Quiz is a multiple-choice question attached to a course.
type Quiz struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

// CourseSummary is the metadata subset used by listings and the enrolled-courses view.
type CourseSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	CreatorUsername string `json:"creatorUsername"`
}

// Course is the full course document with its embedded lessons and quizzes.
type Course struct {
	CourseSummary
	CreatedAt       int64    `json:"createdAt"` // epoch millis
	Students        int64    `json:"students"`
	CertificateLink string   `json:"certificateLink,omitempty"`
	Lessons         []Lesson `json:"lessons"`
	Quizzes         []Quiz   `json:"quizzes"`
}

// EnrollmentReceipt is returned by a successful enroll.
type EnrollmentReceipt struct {
	LearnerID  string `json:"username"`
	CourseID   string `json:"courseId"`
	EnrolledAt string `json:"enrollmentDate"`
}

// ProgressRecord is the per-(learner, course) progress document.
type ProgressRecord struct {
	CompletedLessons    []string       `json:"completedLessons"`
	QuizAnswers         map[string]any `json:"quizAnswers"`
	QuizSubmitted       map[string]any `json:"quizSubmitted"`
	QuizResults         map[string]any `json:"quizResults"`
	CertificateUnlocked bool           `json:"certificateUnlocked"`
	OverallProgress     int            `json:"overallProgress"`
	LastUpdated         string         `json:"lastUpdated"`
}

// NewProgressRecord returns the zero-progress record with non-nil collections.
func NewProgressRecord() ProgressRecord {
	return ProgressRecord{
		CompletedLessons: []string{},
		QuizAnswers:      map[string]any{},
		QuizSubmitted:    map[string]any{},
		QuizResults:      map[string]any{},
	}
}

// PartialProgressUpdate carries only the fields a caller wants to change.
// A nil collection or nil pointer means "leave as is"; an empty, non-nil
// collection clears the stored value.
type PartialProgressUpdate struct {
	LearnerID           string         `json:"-"`
	CourseID            string         `json:"-"`
	CompletedLessons    []string       `json:"completedLessons"`
	QuizAnswers         map[string]any `json:"quizAnswers"`
	QuizSubmitted       map[string]any `json:"quizSubmitted"`
	QuizResults         map[string]any `json:"quizResults"`
	CertificateUnlocked *bool          `json:"certificateUnlocked"`
	OverallProgress     *int           `json:"overallProgress"`
}

// EnrolledCourseView is one row of a learner's dashboard: course metadata joined with progress and recency.
type EnrolledCourseView struct {
	CourseSummary
	Progress     int    `json:"progress"`
	LastAccessed string `json:"lastAccessed"`
}

// Progress feed message types.
const (
	EventSnapshot = "snapshot"
	EventProgress = "progress"
)

// ProgressEvent is pushed to live progress subscribers. A snapshot carries the
// learner's whole view; a progress event carries one updated record.
type ProgressEvent struct {
	Type      string               `json:"type"`
	Username  string               `json:"username"`
	CourseID  string               `json:"courseId,omitempty"`
	Progress  *ProgressRecord      `json:"progress,omitempty"`
	Courses   []EnrolledCourseView `json:"courses,omitempty"`
	Timestamp string               `json:"timestamp"`
}
