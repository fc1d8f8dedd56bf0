package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"knowledgeflow/internal/accounts"
	"knowledgeflow/internal/catalog"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

type InstructorHandler struct {
	accounts *accounts.Service
	catalog  *catalog.Catalog
	log      *logger.Logger
}

func NewInstructorHandler(accounts *accounts.Service, catalog *catalog.Catalog, log *logger.Logger) *InstructorHandler {
	return &InstructorHandler{accounts: accounts, catalog: catalog, log: log}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createCourseRequest struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	ThumbnailURL    string          `json:"thumbnailUrl"`
	Username        string          `json:"username"`
	CertificateLink string          `json:"certificateLink"`
	Lessons         []domain.Lesson `json:"lessons"`
	Quizzes         []domain.Quiz   `json:"quizzes"`
}

func (h *InstructorHandler) Register(c *gin.Context) {
	register(c, h.accounts, h.log)
}

func (h *InstructorHandler) Login(c *gin.Context) {
	login(c, h.accounts, h.log)
}

func (h *InstructorHandler) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Title == "" || req.Description == "" || req.ThumbnailURL == "" || req.Username == "" {
		badRequest(c, "missing required course information")
		return
	}
	ctx := c.Request.Context()
	exists, err := h.accounts.Exists(ctx, req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !exists {
		writeError(c, h.log, domain.ErrUserNotFound)
		return
	}

	course, err := h.catalog.Create(ctx, domain.Course{
		CourseSummary: domain.CourseSummary{
			Title:           req.Title,
			Description:     req.Description,
			Category:        req.Category,
			ThumbnailURL:    req.ThumbnailURL,
			CreatorUsername: req.Username,
		},
		CertificateLink: req.CertificateLink,
		Lessons:         req.Lessons,
		Quizzes:         req.Quizzes,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("course created", "course_id", course.ID, "creator", req.Username)
	c.JSON(http.StatusCreated, gin.H{"message": "Course created successfully", "courseId": course.ID})
}

func (h *InstructorHandler) ListCourses(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		badRequest(c, "username is required")
		return
	}
	courses, err := h.catalog.ListByCreator(c.Request.Context(), username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *InstructorHandler) GetCourse(c *gin.Context) {
	getCourse(c, h.catalog, h.log)
}

// Shared by both services.

func register(c *gin.Context, svc *accounts.Service, log *logger.Logger) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := svc.Register(c.Request.Context(), req.Username, req.Email, req.Password); err != nil {
		writeError(c, log, err)
		return
	}
	log.Info("user registered", "username", req.Username, "email", req.Email)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func login(c *gin.Context, svc *accounts.Service, log *logger.Logger) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	account, err := svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, log, err)
		return
	}
	if account.Courses == nil {
		account.Courses = []string{}
	}
	c.JSON(http.StatusOK, account)
}

func getCourse(c *gin.Context, cat *catalog.Catalog, log *logger.Logger) {
	id := c.Param("id")
	if id == "" {
		writeError(c, log, fmt.Errorf("%w: course id is required", domain.ErrValidation))
		return
	}
	course, err := cat.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, course)
}
