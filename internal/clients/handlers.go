package clients

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/agenda"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
	"github.com/aldoetobex/legal-desk-backend/pkg/pagination"
	"github.com/aldoetobex/legal-desk-backend/pkg/validation"
)

// ===== DTOs =====

type CreateClientRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"max=40"`
	Email      string `json:"email" validate:"omitempty,email,max=120"`
	TaxID      string `json:"tax_id" validate:"omitempty,taxid"`
	EnrolledAt string `json:"enrolled_at" validate:"omitempty,caldate"`
}

// UpdateClientRequest is a partial update; nil fields are left untouched.
type UpdateClientRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone      *string `json:"phone" validate:"omitempty,max=40"`
	Email      *string `json:"email" validate:"omitempty,max=120,email|len=0"`
	TaxID      *string `json:"tax_id" validate:"omitempty,taxid"`
	EnrolledAt *string `json:"enrolled_at" validate:"omitempty,caldate"`
}

type ClientListItem struct {
	models.Client
	OwingCases      int               `json:"owing_cases"`
	UnpaidDebtCents int64             `json:"unpaid_debt_cents"`
	DebtStatus      agenda.DebtStatus `json:"debt_status"`
}

type ClientDetail struct {
	models.Client
	OwingCases      []models.Case     `json:"owing_cases"`
	UnpaidDebtCents int64             `json:"unpaid_debt_cents"`
	DebtStatus      agenda.DebtStatus `json:"debt_status"`
}

type Handler struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewHandler(db *gorm.DB, log *slog.Logger) *Handler {
	return &Handler{db: db, log: log}
}

func parseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// Create Client godoc
// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateClientRequest  true  "Client payload"
// @Success      201  {object}  models.Client
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /clients [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	cl := models.Client{
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		TaxID:      strings.TrimSpace(in.TaxID),
		EnrolledAt: strings.TrimSpace(in.EnrolledAt),
	}
	if err := h.db.Create(&cl).Error; err != nil {
		h.log.Error("create client", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save client")
	}
	return c.Status(fiber.StatusCreated).JSON(cl)
}

// loadDebtInputs fetches every client (with debts) and the payment fields of every case.
func (h *Handler) loadDebtInputs(c *fiber.Ctx) ([]models.Client, []models.Case, error) {
	var clients []models.Client
	if err := h.db.WithContext(c.UserContext()).
		Preload("Debts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Find(&clients).Error; err != nil {
		return nil, nil, err
	}
	var cases []models.Case
	if err := h.db.WithContext(c.UserContext()).
		Select("id", "name", "client_id", "client_name", "category", "payment_status", "created_at").
		Order("created_at DESC").
		Find(&cases).Error; err != nil {
		return nil, nil, err
	}
	return clients, cases, nil
}

// List Clients godoc
// @Summary      List clients
// @Description  Full fetch, then in-memory search (name, email, tax id, phone) and debt facet
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        q         query string false "search text"
// @Param        debt      query string false "all | owes | current"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  models.Page[ClientListItem]
// @Router       /clients [get]
func (h *Handler) List(c *fiber.Ctx) error {
	clients, cases, err := h.loadDebtInputs(c)
	if err != nil {
		h.log.Error("list clients", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not load clients")
	}

	owing := agenda.OwingCases(clients, cases)
	filtered := agenda.ClientFilter(c.Query("q"), c.Query("debt", agenda.All), owing).Apply(clients)

	items := make([]ClientListItem, 0, len(filtered))
	for _, cl := range filtered {
		items = append(items, ClientListItem{
			Client:          cl,
			OwingCases:      len(owing[cl.ID]),
			UnpaidDebtCents: agenda.UnpaidDebtCents(cl),
			DebtStatus:      agenda.StatusOf(cl, owing),
		})
	}

	page, size := pagination.Parse(c)
	return c.JSON(pagination.Slice(items, page, size))
}

// Get Client godoc
// @Summary      Client detail
// @Description  Client with direct debts and the cases still owed
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "client id (uuid)"
// @Success      200  {object}  ClientDetail
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var cl models.Client
	if err := h.db.Preload("Debts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&cl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	var cases []models.Case
	if err := h.db.Where("client_id = ?", id).Order("created_at DESC").Find(&cases).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	owing := agenda.OwingCases([]models.Client{cl}, cases)
	detail := ClientDetail{
		Client:          cl,
		OwingCases:      owing[cl.ID],
		UnpaidDebtCents: agenda.UnpaidDebtCents(cl),
		DebtStatus:      agenda.StatusOf(cl, owing),
	}
	// never send null
	if detail.OwingCases == nil {
		detail.OwingCases = []models.Case{}
	}
	if detail.Debts == nil {
		detail.Debts = []models.Debt{}
	}
	return c.JSON(detail)
}

// Update Client godoc
// @Summary      Update client
// @Description  Partial update. Renaming refreshes the cached client name on every case and event.
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "client id (uuid)"
// @Param        payload  body  UpdateClientRequest  true  "Fields to change"
// @Success      200  {object}  models.Client
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.TaxID != nil {
		updates["tax_id"] = strings.TrimSpace(*in.TaxID)
	}
	if in.EnrolledAt != nil {
		updates["enrolled_at"] = strings.TrimSpace(*in.EnrolledAt)
	}

	var cl models.Client
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cl, "id = ?", id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		renamed := in.Name != nil && updates["name"] != cl.Name
		if err := tx.Model(&cl).Updates(updates).Error; err != nil {
			return err
		}
		if renamed {
			if err := tx.Model(&models.Case{}).Where("client_id = ?", id).
				Update("client_name", updates["name"]).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Event{}).Where("client_id = ?", id).
				Update("client_name", updates["name"]).Error; err != nil {
				return err
			}
		}
		return tx.First(&cl, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		h.log.Error("update client", "client", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not update client")
	}
	return c.JSON(cl)
}

// Delete Client godoc
// @Summary      Delete client
// @Description  Removes the client and its direct debts. Cases and events that reference it are kept as unattributed.
// @Tags         clients
// @Security     BearerAuth
// @Param        id   path string true "client id (uuid)"
// @Success      204
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /clients/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.Debt{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Client{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		h.log.Error("delete client", "client", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not delete client")
	}
	h.log.Info("client deleted", "client", id, "at", time.Now().UTC())
	return c.SendStatus(fiber.StatusNoContent)
}
