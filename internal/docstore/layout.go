package docstore

// Top-level collections shared by the instructor and learner services.
const (
	UsersCollection    = "users"
	CoursesCollection  = "courses"
	LearnersCollection = "learners"
)

func UserPath(username string) string { return Join(UsersCollection, username) }

// UserCoursesPath holds the ids of courses an instructor authored.
func UserCoursesPath(username string) string { return Join(UsersCollection, username, "courses") }

func CoursePath(courseID string) string  { return Join(CoursesCollection, courseID) }
func LessonsPath(courseID string) string { return Join(CoursesCollection, courseID, "lessons") }
func QuizzesPath(courseID string) string { return Join(CoursesCollection, courseID, "quizzes") }

// EnrollmentsPath holds courseId -> enrolledAt for one learner.
func EnrollmentsPath(learnerID string) string {
	return Join(LearnersCollection, learnerID, "enrollments")
}

// LastAccessedPath holds courseId -> lastAccessedAt for one learner.
func LastAccessedPath(learnerID string) string {
	return Join(LearnersCollection, learnerID, "lastAccessed")
}

func ProgressPath(learnerID, courseID string) string {
	return Join(LearnersCollection, learnerID, "progress", courseID)
}
