package handlers

import (
	"net/http"
	"time"

	dom "taskflow/internal/domain"
	"taskflow/internal/dto"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TaskHandler struct {
	svc *service.TaskService
	now func() time.Time
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc, now: time.Now}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	req := validation.Payload[dto.CreateTaskRequest](c)
	t, err := h.svc.Create(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.OK(taskToResponse(t, h.now())))
}

// List godoc
// @Summary      List visible tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        page        query  int     false  "Page, from 1"
// @Param        limit       query  int     false  "Page size, up to 100"
// @Param        status      query  string  false  "TODO|IN_PROGRESS|IN_REVIEW|DONE"
// @Param        priority    query  string  false  "LOW|MEDIUM|HIGH|URGENT"
// @Param        projectId   query  string  false  "Project ID"
// @Param        assigneeId  query  string  false  "Assignee ID"
// @Param        dueBefore   query  string  false  "Date or RFC3339"
// @Param        dueAfter    query  string  false  "Date or RFC3339"
// @Success      200  {object}  dto.Envelope{data=[]dto.TaskResponse}
// @Failure      400  {object}  dto.Envelope
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	f := filterFromQuery(validation.Payload[dto.ListTasksQuery](c))
	list, total, err := h.svc.List(c.Request.Context(), id, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Paged(tasksToResponses(list, h.now()), pageMeta(f.Page, total)))
}

// Search godoc
// @Summary      Search tasks by title/description
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Search query"
// @Success      200  {object}  dto.Envelope{data=[]dto.TaskResponse}
// @Failure      400  {object}  dto.Envelope
// @Router       /tasks/search [get]
func (h *TaskHandler) Search(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	q := validation.Payload[dto.SearchTasksQuery](c)
	list, err := h.svc.Search(c.Request.Context(), id, q.Q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(tasksToResponses(list, h.now())))
}

// Overdue godoc
// @Summary      List overdue tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.Envelope{data=[]dto.TaskResponse}
// @Router       /tasks/overdue [get]
func (h *TaskHandler) Overdue(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.svc.Overdue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(tasksToResponses(list, h.now())))
}

// GetByID godoc
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      404  {object}  dto.Envelope
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(taskToResponse(t, h.now())))
}

// Update godoc
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                 true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      400   {object}  dto.Envelope
// @Failure      404   {object}  dto.Envelope
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	req := validation.Payload[dto.UpdateTaskRequest](c)
	t, err := h.svc.Update(c.Request.Context(), id, taskID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(taskToResponse(t, h.now())))
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id   path  string  true  "Task ID"
// @Success      200  {object}  dto.Envelope
// @Failure      403  {object}  dto.Envelope
// @Failure      404  {object}  dto.Envelope
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, taskID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OKMessage("task deleted"))
}

// Complete godoc
// @Summary      Mark a task as done
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.Envelope{data=dto.TaskResponse}
// @Failure      404  {object}  dto.Envelope
// @Failure      409  {object}  dto.Envelope
// @Router       /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Complete(c.Request.Context(), id, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OK(taskToResponse(t, h.now())))
}

// filterFromQuery converts an already validated query.
func filterFromQuery(q dto.ListTasksQuery) dom.TaskFilter {
	f := dom.TaskFilter{
		Status:   dom.TaskStatus(q.Status),
		Priority: dom.TaskPriority(q.Priority),
		Page:     dom.Page{Number: int(q.Page), Limit: int(q.Limit)},
	}
	if id, err := uuid.Parse(q.ProjectID); err == nil {
		f.ProjectID = &id
	}
	if id, err := uuid.Parse(q.AssigneeID); err == nil {
		f.AssigneeID = &id
	}
	if q.DueBefore != nil {
		f.DueBefore = q.DueBefore.Ptr()
	}
	if q.DueAfter != nil {
		f.DueAfter = q.DueAfter.Ptr()
	}
	return f
}
