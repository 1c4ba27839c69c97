package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/service"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/response"
)

// AdvisorHandler exposes advisor assignment endpoints for department heads.
type AdvisorHandler struct {
	advisors *service.AdvisorService
}

// NewAdvisorHandler constructs AdvisorHandler.
func NewAdvisorHandler(advisors *service.AdvisorService) *AdvisorHandler {
	return &AdvisorHandler{advisors: advisors}
}

type assignAdvisorRequest struct {
	AdvisorID string `json:"advisor_id" binding:"required"`
}

// Assign godoc
// @Summary Assign an advisor to a project
// @Tags Advisors
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body assignAdvisorRequest true "Advisor selection"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/advisor [put]
func (h *AdvisorHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req assignAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.advisors.AssignAdvisor(c.Request.Context(), c.Param("id"), req.AdvisorID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Remove godoc
// @Summary Remove a project's advisor
// @Tags Advisors
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/advisor [delete]
func (h *AdvisorHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	project, err := h.advisors.RemoveAdvisor(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// AvailableInstructors godoc
// @Summary List department instructors ranked by advising load
// @Tags Advisors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /advisors/available [get]
func (h *AdvisorHandler) AvailableInstructors(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	instructors, err := h.advisors.GetAvailableInstructors(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, nil)
}

// UnassignedProjects godoc
// @Summary List approved department projects without an advisor
// @Tags Advisors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /advisors/unassigned-projects [get]
func (h *AdvisorHandler) UnassignedProjects(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projects, err := h.advisors.GetUnassignedProjects(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}

// ProjectsWithAdvisors godoc
// @Summary List department projects with advisors
// @Tags Advisors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /advisors/assigned-projects [get]
func (h *AdvisorHandler) ProjectsWithAdvisors(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projects, err := h.advisors.GetProjectsWithAdvisors(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, nil)
}
