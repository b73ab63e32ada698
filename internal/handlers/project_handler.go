package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourforge/backend/internal/middleware"
	"github.com/tourforge/backend/internal/models"
	"github.com/tourforge/backend/internal/services"
	"github.com/tourforge/backend/pkg/validation"
)

type ProjectHandler struct {
	projectService *services.ProjectService
	publishService *services.PublishService
	userService    *services.UserService
	qrService      *services.QRService
}

func NewProjectHandler(projectService *services.ProjectService, publishService *services.PublishService, userService *services.UserService, qrService *services.QRService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		publishService: publishService,
		userService:    userService,
		qrService:      qrService,
	}
}

// projectParam parses the project id path parameter
func projectParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return uuid.Nil, false
	}
	return id, true
}

// requireMember aborts with 403 unless the current user belongs to the project
func requireMember(c *gin.Context, projectService *services.ProjectService, projectID uuid.UUID) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	if !projectService.IsMember(userID, projectID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this project"})
		return uuid.Nil, false
	}
	return userID, true
}

// requireAdmin aborts with 403 unless the current user is a project admin
func requireAdmin(c *gin.Context, projectService *services.ProjectService, projectID uuid.UUID) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return uuid.Nil, false
	}
	if !projectService.IsAdmin(userID, projectID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Project admin privileges required"})
		return uuid.Nil, false
	}
	return userID, true
}

func projectResponse(p *models.Project) gin.H {
	return gin.H{
		"id":           p.ID,
		"name":         p.Name,
		"published":    p.PublishedBundle != nil,
		"published_at": p.PublishedAt,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
}

// List returns the projects the current user belongs to
func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	projects, err := h.projectService.ListForUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}

	out := make([]gin.H, 0, len(projects))
	for i := range projects {
		out = append(out, projectResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Create creates a project with the current user as its first admin
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,min=1,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projectService.Create(validation.SanitizeString(req.Name), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, projectResponse(project))
}

// Get returns a single project
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	project, err := h.projectService.GetByID(projectID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	c.JSON(http.StatusOK, projectResponse(project))
}

// Update renames a project
func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required,min=1,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projectService.UpdateName(projectID, validation.SanitizeString(req.Name))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, projectResponse(project))
}

// Delete removes a project and everything it owns
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	if err := h.projectService.Delete(projectID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted"})
}

// Publish builds and swaps in a fresh bundle for the project
func (h *ProjectHandler) Publish(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	if err := h.publishService.Publish(c.Request.Context(), projectID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		case errors.Is(err, services.ErrPublishInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "A publish is already in progress for this project"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish project"})
		}
		return
	}

	project, err := h.projectService.GetByID(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	c.JSON(http.StatusOK, projectResponse(project))
}

// Unpublish removes the project's published bundle
func (h *ProjectHandler) Unpublish(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	if err := h.publishService.Unpublish(c.Request.Context(), projectID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		case errors.Is(err, services.ErrPublishInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "A publish is already in progress for this project"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unpublish project"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project unpublished"})
}

// QRPoster returns a printable PDF with a QR code linking to the project's tours
func (h *ProjectHandler) QRPoster(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	project, err := h.projectService.GetByID(projectID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		return
	}

	pdf, err := h.qrService.GenerateProjectQRPDF(project)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate poster"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="poster.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func memberResponse(m *models.ProjectMember) gin.H {
	return gin.H{
		"id":       m.ID,
		"user_id":  m.UserID,
		"username": m.User.Username,
		"admin":    m.Admin,
	}
}

// ListMembers returns a project's members
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireMember(c, h.projectService, projectID); !ok {
		return
	}

	members, err := h.projectService.ListMembers(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}

	out := make([]gin.H, 0, len(members))
	for i := range members {
		out = append(out, memberResponse(&members[i]))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// AddMember adds a user to the project by username
func (h *ProjectHandler) AddMember(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	var req struct {
		Username string `json:"username" binding:"required"`
		Admin    bool   `json:"admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	member, err := h.projectService.AddMember(projectID, user.ID, req.Admin)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyMember) {
			c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	c.JSON(http.StatusCreated, memberResponse(member))
}

// UpdateMember changes a member's admin flag
func (h *ProjectHandler) UpdateMember(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if _, ok := requireAdmin(c, h.projectService, projectID); !ok {
		return
	}

	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var req struct {
		Admin bool `json:"admin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.projectService.UpdateMember(projectID, memberID, req.Admin)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	c.JSON(http.StatusOK, memberResponse(member))
}

// RemoveMember removes a member from the project. Admins can remove anyone;
// a member can always remove themselves to leave the project.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	memberID, err := uuid.Parse(c.Param("member_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	member, err := h.projectService.GetMember(projectID, memberID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	if member.UserID != userID && !h.projectService.IsAdmin(userID, projectID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Project admin privileges required"})
		return
	}

	if err := h.projectService.RemoveMember(projectID, memberID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
