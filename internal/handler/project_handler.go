package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/models"
	"github.com/gradlink/gradlink-api/internal/service"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/response"
)

// ProjectHandler exposes title lifecycle endpoints.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler constructs ProjectHandler.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// SubmitTitle godoc
// @Summary Submit a project title for approval
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.SubmitTitleRequest true "Title submission"
// @Success 201 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) SubmitTitle(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.projects.SubmitTitle(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Approve godoc
// @Summary Approve a pending project title
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/approve [put]
func (h *ProjectHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	project, err := h.projects.ApproveTitle(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

type rejectTitleRequest struct {
	Reason string `json:"reason"`
}

// Reject godoc
// @Summary Reject a pending project title
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body rejectTitleRequest false "Optional rejection reason"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/reject [put]
func (h *ProjectHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req rejectTitleRequest
	_ = c.ShouldBindJSON(&req)
	project, err := h.projects.RejectTitle(c.Request.Context(), c.Param("id"), claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Status godoc
// @Summary Project status for the owning student
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/status [get]
func (h *ProjectHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	project, err := h.projects.GetProjectStatus(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// ListMine godoc
// @Summary List the caller's projects
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var (
		projects []models.ProjectDetail
		err      error
	)
	if claims.Role == models.RoleInstructor {
		projects, err = h.projects.ListByInstructor(c.Request.Context(), claims.UserID)
	} else {
		projects, err = h.projects.ListByStudent(c.Request.Context(), claims.UserID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// ListPending godoc
// @Summary List projects awaiting the instructor's decision
// @Tags Projects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /projects/pending [get]
func (h *ProjectHandler) ListPending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projects, err := h.projects.ListByInstructor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}
