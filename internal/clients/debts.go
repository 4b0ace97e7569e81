package clients

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
	"github.com/aldoetobex/legal-desk-backend/pkg/validation"
)

type AddDebtRequest struct {
	Concept     string `json:"concept" validate:"required,max=200"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Date        string `json:"date" validate:"omitempty,caldate"`
}

// Add Debt godoc
// @Summary      Add a direct debt to a client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string          true  "client id (uuid)"
// @Param        payload  body  AddDebtRequest  true  "Debt payload"
// @Success      201  {object}  models.Debt
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id}/debts [post]
func (h *Handler) AddDebt(c *fiber.Ctx) error {
	clientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in AddDebtRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cl models.Client
	if err := h.db.Select("id").First(&cl, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	d := models.Debt{
		ClientID:    clientID,
		Concept:     strings.TrimSpace(in.Concept),
		AmountCents: in.AmountCents,
		Date:        strings.TrimSpace(in.Date),
	}
	if err := h.db.Create(&d).Error; err != nil {
		h.log.Error("add debt", "client", clientID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save debt")
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// Pay Debt godoc
// @Summary      Mark a direct debt as paid
// @Description  Idempotent: paying an already paid debt returns it unchanged
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id      path string true "client id (uuid)"
// @Param        debtID  path string true "debt id (uuid)"
// @Success      200  {object}  models.Debt
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id}/debts/{debtID}/pay [patch]
func (h *Handler) PayDebt(c *fiber.Ctx) error {
	clientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	debtID, err := parseID(c, "debtID")
	if err != nil {
		return err
	}

	// single winner: lock the row, flip it once
	tx := h.db.Begin()

	var d models.Debt
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, "id = ? AND client_id = ?", debtID, clientID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if d.Paid {
		tx.Rollback()
		return c.JSON(d)
	}

	if err := tx.Model(&models.Debt{}).Where("id = ?", d.ID).Update("paid", true).Error; err != nil {
		tx.Rollback()
		return fiber.ErrInternalServerError
	}
	if err := tx.Commit().Error; err != nil {
		return fiber.ErrInternalServerError
	}

	d.Paid = true
	h.log.Info("debt paid", "client", clientID, "debt", d.ID, "amount_cents", d.AmountCents)
	return c.JSON(d)
}

// Delete Debt godoc
// @Summary      Remove a direct debt
// @Tags         clients
// @Security     BearerAuth
// @Param        id      path string true "client id (uuid)"
// @Param        debtID  path string true "debt id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id}/debts/{debtID} [delete]
func (h *Handler) DeleteDebt(c *fiber.Ctx) error {
	clientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	debtID, err := parseID(c, "debtID")
	if err != nil {
		return err
	}

	res := h.db.Where("id = ? AND client_id = ?", debtID, clientID).Delete(&models.Debt{})
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
