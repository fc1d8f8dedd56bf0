package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"knowledgeflow/internal/accounts"
	"knowledgeflow/internal/app"
	"knowledgeflow/internal/catalog"
	"knowledgeflow/internal/domain"
	"knowledgeflow/internal/logger"
)

// LearnerService bundles what the learner API calls into.
type LearnerService struct {
	Accounts    *accounts.Service
	Catalog     *catalog.Catalog
	Enrollments *app.EnrollmentManager
	Progress    *app.ProgressTracker
	View        *app.ViewBuilder
	Feeds       *app.ProgressFeeds
}

type LearnerHandler struct {
	svc LearnerService
	log *logger.Logger
}

func NewLearnerHandler(svc LearnerService, log *logger.Logger) *LearnerHandler {
	return &LearnerHandler{svc: svc, log: log}
}

type enrollRequest struct {
	Username string `json:"username"`
}

func (h *LearnerHandler) Signup(c *gin.Context) {
	register(c, h.svc.Accounts, h.log)
}

func (h *LearnerHandler) Login(c *gin.Context) {
	login(c, h.svc.Accounts, h.log)
}

func (h *LearnerHandler) GetCourse(c *gin.Context) {
	getCourse(c, h.svc.Catalog, h.log)
}

func (h *LearnerHandler) BrowseCourses(c *gin.Context) {
	courses, err := h.svc.Catalog.Browse(c.Request.Context(), c.Query("category"), c.Query("search"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *LearnerHandler) Enroll(c *gin.Context) {
	courseID := c.Param("id")
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || courseID == "" || req.Username == "" {
		badRequest(c, "course id and username are required")
		return
	}
	ctx := c.Request.Context()
	if err := h.requireLearnerAndCourse(ctx, req.Username, courseID); err != nil {
		writeError(c, h.log, err)
		return
	}

	receipt, err := h.svc.Enrollments.Enroll(ctx, req.Username, courseID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("learner enrolled", "username", req.Username, "course_id", courseID)
	c.JSON(http.StatusOK, gin.H{
		"message":        "Successfully enrolled in course",
		"enrollmentDate": receipt.EnrolledAt,
	})
}

func (h *LearnerHandler) EnrolledCourses(c *gin.Context) {
	username := c.Param("username")
	ctx := c.Request.Context()
	if err := h.requireLearner(ctx, username); err != nil {
		writeError(c, h.log, err)
		return
	}
	views, err := h.svc.View.BuildView(ctx, username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *LearnerHandler) UpdateProgress(c *gin.Context) {
	username, courseID := c.Param("username"), c.Param("courseId")
	var update domain.PartialProgressUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "invalid progress payload")
		return
	}
	update.LearnerID, update.CourseID = username, courseID

	ctx := c.Request.Context()
	if err := h.requireLearnerAndCourse(ctx, username, courseID); err != nil {
		writeError(c, h.log, err)
		return
	}
	enrolled, err := h.svc.Enrollments.IsEnrolled(ctx, username, courseID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !enrolled {
		writeError(c, h.log, domain.ErrNotEnrolled)
		return
	}

	record, err := h.svc.Progress.UpdateProgress(ctx, update)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.svc.Feeds.Publish(username, courseID, record)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Progress updated successfully",
		"timestamp": record.LastUpdated,
	})
}

func (h *LearnerHandler) GetProgress(c *gin.Context) {
	username, courseID := c.Param("username"), c.Param("courseId")
	ctx := c.Request.Context()
	if err := h.requireLearnerAndCourse(ctx, username, courseID); err != nil {
		writeError(c, h.log, err)
		return
	}
	record, err := h.svc.Progress.GetProgress(ctx, username, courseID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *LearnerHandler) requireLearner(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	ok, err := h.svc.Accounts.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (h *LearnerHandler) requireLearnerAndCourse(ctx context.Context, username, courseID string) error {
	if err := h.requireLearner(ctx, username); err != nil {
		return err
	}
	ok, err := h.svc.Catalog.Exists(ctx, courseID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCourseNotFound
	}
	return nil
}
