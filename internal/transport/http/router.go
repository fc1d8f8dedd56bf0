package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"knowledgeflow/internal/logger"
)

// RouterConfig holds what both services share.
type RouterConfig struct {
	AllowedOrigins []string
	Log            *logger.Logger
}

func newEngine(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))
	r.Use(CORS(cfg.AllowedOrigins))
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

// NewInstructorRouter wires the course-authoring API.
func NewInstructorRouter(cfg RouterConfig, h *InstructorHandler) *gin.Engine {
	r := newEngine(cfg)
	r.POST("/register", h.Register)
	r.POST("/signup", h.Register)
	r.POST("/login", h.Login)

	courses := r.Group("/courses")
	{
		courses.POST("", h.CreateCourse)
		courses.GET("", h.ListCourses)
		courses.GET("/:id", h.GetCourse)
	}
	return r
}

// NewLearnerRouter wires the learner API and its progress stream.
func NewLearnerRouter(cfg RouterConfig, h *LearnerHandler, ws *WSHandler) *gin.Engine {
	r := newEngine(cfg)
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/courses/:id", h.GetCourse)

	api := r.Group("/api")
	{
		api.GET("/courses", h.BrowseCourses)
		api.POST("/courses/:id/enroll", h.Enroll)

		users := api.Group("/users/:username")
		{
			users.GET("/enrolled-courses", h.EnrolledCourses)
			users.POST("/courses/:courseId/progress", h.UpdateProgress)
			users.GET("/courses/:courseId/progress", h.GetProgress)
			users.GET("/progress/stream", ws.ServeProgress)
		}
	}
	return r
}
