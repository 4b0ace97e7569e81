package cases

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
	"github.com/aldoetobex/legal-desk-backend/pkg/validation"
)

type AddDeadlineRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Date        string `json:"date" validate:"required,caldate"`
}

type AddWorkItemRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	DueDate     string `json:"due_date" validate:"omitempty,caldate"`
}

type UpdateWorkItemRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string `json:"due_date" validate:"omitempty,caldate"`
	Fulfilled   *bool   `json:"fulfilled"`
}

// itemKind binds the filing and task endpoints to their table.
type itemKind struct {
	table string
	model func(models.WorkItem) any
}

var (
	filings = itemKind{table: "filings", model: func(w models.WorkItem) any { return &models.Filing{WorkItem: w} }}
	tasks   = itemKind{table: "tasks", model: func(w models.WorkItem) any { return &models.Task{WorkItem: w} }}
)

// caseExists maps a missing case to 404.
func (h *Handler) caseExists(id uuid.UUID) error {
	var n int64
	if err := h.db.Model(&models.Case{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if n == 0 {
		return fiber.ErrNotFound
	}
	return nil
}

func (h *Handler) caseAndItemIDs(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	caseID, err := parseID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	itemID, err := parseID(c, "itemID")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return caseID, itemID, nil
}

// Add Deadline godoc
// @Summary      Add deadline
// @Tags         deadlines
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "case id (uuid)"
// @Param        payload  body  AddDeadlineRequest  true  "Deadline payload"
// @Success      201  {object}  models.Deadline
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/deadlines [post]
func (h *Handler) AddDeadline(c *fiber.Ctx) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in AddDeadlineRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.caseExists(caseID); err != nil {
		return err
	}

	d := models.Deadline{
		CaseID:      caseID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
	}
	if err := h.db.Create(&d).Error; err != nil {
		h.log.Error("add deadline", "case", caseID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save deadline")
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// Delete Deadline godoc
// @Summary      Remove deadline
// @Tags         deadlines
// @Security     BearerAuth
// @Param        id      path string true "case id (uuid)"
// @Param        itemID  path string true "deadline id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/deadlines/{itemID} [delete]
func (h *Handler) DeleteDeadline(c *fiber.Ctx) error {
	caseID, itemID, err := h.caseAndItemIDs(c)
	if err != nil {
		return err
	}
	res := h.db.Where("id = ? AND case_id = ?", itemID, caseID).Delete(&models.Deadline{})
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Add Filing godoc
// @Summary      Add official filing
// @Tags         filings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "case id (uuid)"
// @Param        payload  body  AddWorkItemRequest  true  "Filing payload"
// @Success      201  {object}  models.Filing
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/filings [post]
func (h *Handler) AddFiling(c *fiber.Ctx) error { return h.addWorkItem(c, filings) }

// Update Filing godoc
// @Summary      Update official filing
// @Description  Partial update; send {"fulfilled":true} to resolve it
// @Tags         filings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "case id (uuid)"
// @Param        itemID   path  string                 true  "filing id (uuid)"
// @Param        payload  body  UpdateWorkItemRequest  true  "Fields to change"
// @Success      200  {object}  models.WorkItem
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/filings/{itemID} [patch]
func (h *Handler) UpdateFiling(c *fiber.Ctx) error { return h.updateWorkItem(c, filings) }

// Delete Filing godoc
// @Summary      Remove official filing
// @Tags         filings
// @Security     BearerAuth
// @Param        id      path string true "case id (uuid)"
// @Param        itemID  path string true "filing id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/filings/{itemID} [delete]
func (h *Handler) DeleteFiling(c *fiber.Ctx) error { return h.deleteWorkItem(c, filings) }

// Add Task godoc
// @Summary      Add task
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "case id (uuid)"
// @Param        payload  body  AddWorkItemRequest  true  "Task payload"
// @Success      201  {object}  models.Task
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/tasks [post]
func (h *Handler) AddTask(c *fiber.Ctx) error { return h.addWorkItem(c, tasks) }

// Update Task godoc
// @Summary      Update task
// @Description  Partial update; send {"fulfilled":true} to resolve it
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                 true  "case id (uuid)"
// @Param        itemID   path  string                 true  "task id (uuid)"
// @Param        payload  body  UpdateWorkItemRequest  true  "Fields to change"
// @Success      200  {object}  models.WorkItem
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/tasks/{itemID} [patch]
func (h *Handler) UpdateTask(c *fiber.Ctx) error { return h.updateWorkItem(c, tasks) }

// Delete Task godoc
// @Summary      Remove task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id      path string true "case id (uuid)"
// @Param        itemID  path string true "task id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/tasks/{itemID} [delete]
func (h *Handler) DeleteTask(c *fiber.Ctx) error { return h.deleteWorkItem(c, tasks) }

func (h *Handler) addWorkItem(c *fiber.Ctx, kind itemKind) error {
	caseID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in AddWorkItemRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if err := h.caseExists(caseID); err != nil {
		return err
	}

	rec := kind.model(models.WorkItem{
		CaseID:      caseID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		DueDate:     strings.TrimSpace(in.DueDate),
	})
	if err := h.db.Create(rec).Error; err != nil {
		h.log.Error("add work item", "table", kind.table, "case", caseID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save item")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *Handler) updateWorkItem(c *fiber.Ctx, kind itemKind) error {
	caseID, itemID, err := h.caseAndItemIDs(c)
	if err != nil {
		return err
	}
	var in UpdateWorkItemRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.DueDate != nil {
		updates["due_date"] = strings.TrimSpace(*in.DueDate)
	}
	if in.Fulfilled != nil {
		updates["fulfilled"] = *in.Fulfilled
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	res := h.db.Table(kind.table).Where("id = ? AND case_id = ?", itemID, caseID).Updates(updates)
	if res.Error != nil {
		h.log.Error("update work item", "table", kind.table, "item", itemID, "error", res.Error)
		return fiber.NewError(fiber.StatusInternalServerError, "could not update item")
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}

	var out models.WorkItem
	if err := h.db.Table(kind.table).Where("id = ?", itemID).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}

func (h *Handler) deleteWorkItem(c *fiber.Ctx, kind itemKind) error {
	caseID, itemID, err := h.caseAndItemIDs(c)
	if err != nil {
		return err
	}
	res := h.db.Where("id = ? AND case_id = ?", itemID, caseID).Delete(kind.model(models.WorkItem{}))
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
