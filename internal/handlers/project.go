package handlers

import (
	"net/http"

	"taskflow/internal/dto"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	svc *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// Create godoc
// @Summary      Create a project (caller becomes OWNER)
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dto.CreateProjectRequest  true  "Project"
// @Success      201   {object}  dto.Envelope{data=dto.ProjectResponse}
// @Failure      400   {object}  dto.Envelope
// @Router       /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	p, err := h.svc.Create(c.Request.Context(), id, validation.Payload[dto.CreateProjectRequest](c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(projectToResponse(p, nil)))
}

// @Summary      List my projects
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.Envelope{data=[]dto.ProjectResponse}
// @Router       /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.ProjectResponse, len(list))
	for i := range list {
		out[i] = projectToResponse(list[i], nil)
	}
	c.JSON(http.StatusOK, dto.OK(out))
}

// Get returns the project with its members.
// @Summary      Get a project with members
// @Tags         projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  dto.Envelope{data=dto.ProjectResponse}
// @Failure      404  {object}  dto.Envelope
// @Router       /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, members, err := h.svc.Get(c.Request.Context(), id, projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(projectToResponse(p, members)))
}

// AddMember godoc
// @Summary      Add a member by email (owner only)
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Project ID"
// @Param        body  body      dto.AddMemberRequest  true  "Member"
// @Success      201   {object}  dto.Envelope{data=[]dto.MemberResponse}
// @Failure      403   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Failure      409   {object}  dto.Envelope
// @Router       /projects/{id}/members [post]
func (h *ProjectHandler) AddMember(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	req := validation.Payload[dto.AddMemberRequest](c)
	members, err := h.svc.AddMember(c.Request.Context(), id, projectID, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(membersToResponses(members)))
}

// RemoveMember godoc
// @Summary      Remove a member (owner, or the member themself)
// @Tags         projects
// @Security     BearerAuth
// @Param        id      path  string  true  "Project ID"
// @Param        userId  path  string  true  "User ID"
// @Success      200  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      409  {object}  dto.Envelope
// @Router       /projects/{id}/members/{userId} [delete]
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), id, projectID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKMessage("member removed"))
}
