package cases

import (
	"context"
	"errors"
	"io"
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

type CreateCaseRequest struct {
	Category      string `json:"category" validate:"required,oneof=Judicial ART Sucesion Administrativo Consulta"`
	Name          string `json:"name" validate:"required,max=200"`
	ClientID      string `json:"client_id" validate:"required,uuid"`
	Docket        string `json:"docket" validate:"max=60"`
	ProcessType   string `json:"process_type" validate:"max=120"`
	Status        string `json:"status" validate:"max=120"`
	Motive        string `json:"motive" validate:"max=500"`
	Pathology     string `json:"pathology" validate:"max=500"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=Pagado Debe"`
}

// UpdateCaseRequest is a partial update; nil fields are left untouched.
type UpdateCaseRequest struct {
	Category      *string `json:"category" validate:"omitempty,oneof=Judicial ART Sucesion Administrativo Consulta"`
	Name          *string `json:"name" validate:"omitempty,min=1,max=200"`
	ClientID      *string `json:"client_id" validate:"omitempty,uuid"`
	Docket        *string `json:"docket" validate:"omitempty,max=60"`
	ProcessType   *string `json:"process_type" validate:"omitempty,max=120"`
	Status        *string `json:"status" validate:"omitempty,max=120"`
	Motive        *string `json:"motive" validate:"omitempty,max=500"`
	Pathology     *string `json:"pathology" validate:"omitempty,max=500"`
	PaymentStatus *string `json:"payment_status" validate:"omitempty,oneof=Pagado Debe"`
}

type SetPaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=Pagado Debe"`
}

type CaseListItem struct {
	ID            uuid.UUID            `json:"id"`
	Category      models.CaseCategory  `json:"category"`
	Name          string               `json:"name"`
	ClientID      uuid.UUID            `json:"client_id"`
	ClientName    string               `json:"client_name"`
	Docket        string               `json:"docket,omitempty"`
	Status        string               `json:"status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time            `json:"created_at"`
	Deadlines     int                  `json:"deadlines"`
	PendingItems  int                  `json:"pending_items"`
}

// ObjectStore holds the binary content of case documents.
type ObjectStore interface {
	Configured() bool
	MakeObjectKey(caseID, filename string) string
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	SignedURL(ctx context.Context, key string, expiresInSeconds int) (string, error)
	Delete(ctx context.Context, key string) error
	BulkDelete(ctx context.Context, keys []string) error
}

type Handler struct {
	db    *gorm.DB
	store ObjectStore
	log   *slog.Logger
}

func NewHandler(db *gorm.DB, store ObjectStore, log *slog.Logger) *Handler {
	return &Handler{db: db, store: store, log: log}
}

func parseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// lookupClient resolves the client a case points at. The cached name always
// comes from the stored record, never from the request.
func lookupClient(db *gorm.DB, raw string) (models.Client, error) {
	var cl models.Client
	err := db.Select("id", "name").First(&cl, "id = ?", raw).Error
	return cl, err
}

func clientNotFound(c *fiber.Ctx) error {
	return validation.Respond(c, map[string][]string{"client_id": {"Client not found"}})
}

// clearProceedings drops the docket-style fields for categories that do not use them.
func clearProceedings(cs *models.Case) {
	if cs.Category.HasProceedings() {
		return
	}
	cs.Docket, cs.ProcessType, cs.Status, cs.Motive, cs.Pathology = "", "", "", "", ""
}

// Create Case godoc
// @Summary      Create case
// @Description  Proceedings fields (docket, process type, status, motive, pathology) are kept only for Judicial and ART
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	cl, err := lookupClient(h.db, in.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return clientNotFound(c)
		}
		return fiber.ErrInternalServerError
	}

	cs := models.Case{
		Category:      models.CaseCategory(in.Category),
		Name:          strings.TrimSpace(in.Name),
		ClientID:      cl.ID,
		ClientName:    cl.Name,
		Docket:        strings.TrimSpace(in.Docket),
		ProcessType:   strings.TrimSpace(in.ProcessType),
		Status:        strings.TrimSpace(in.Status),
		Motive:        strings.TrimSpace(in.Motive),
		Pathology:     strings.TrimSpace(in.Pathology),
		PaymentStatus: models.PaymentStatus(in.PaymentStatus),
	}
	clearProceedings(&cs)

	if err := h.db.Create(&cs).Error; err != nil {
		h.log.Error("create case", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save case")
	}

	// never send null
	cs.Deadlines, cs.Filings, cs.Tasks = []models.Deadline{}, []models.Filing{}, []models.Task{}
	return c.Status(fiber.StatusCreated).JSON(cs)
}

// List Cases godoc
// @Summary      List cases
// @Description  Full fetch (newest first), then in-memory search over name, docket and client name plus category / status / payment facets ("all" = no constraint)
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        q         query string false "search text"
// @Param        category  query string false "Judicial | ART | Sucesion | Administrativo | Consulta | all"
// @Param        status    query string false "procedural status or all"
// @Param        payment   query string false "Pagado | Debe | all"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  models.Page[CaseListItem]
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	var all []models.Case
	if err := h.db.WithContext(c.UserContext()).
		Preload("Deadlines").Preload("Filings").Preload("Tasks").
		Order("created_at DESC").
		Find(&all).Error; err != nil {
		h.log.Error("list cases", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not load cases")
	}

	f := agenda.CaseFilter(c.Query("q"), c.Query("category", agenda.All), c.Query("status", agenda.All), c.Query("payment", agenda.All))
	filtered := f.Apply(all)

	items := make([]CaseListItem, 0, len(filtered))
	for _, cs := range filtered {
		items = append(items, CaseListItem{
			ID:            cs.ID,
			Category:      cs.Category,
			Name:          cs.Name,
			ClientID:      cs.ClientID,
			ClientName:    cs.ClientName,
			Docket:        cs.Docket,
			Status:        cs.Status,
			PaymentStatus: cs.PaymentStatus.Normalize(),
			CreatedAt:     cs.CreatedAt,
			Deadlines:     len(cs.Deadlines),
			PendingItems:  pendingCount(cs),
		})
	}

	page, size := pagination.Parse(c)
	return c.JSON(pagination.Slice(items, page, size))
}

func pendingCount(cs models.Case) int {
	n := 0
	for _, f := range cs.Filings {
		if !f.Fulfilled {
			n++
		}
	}
	for _, t := range cs.Tasks {
		if !t.Fulfilled {
			n++
		}
	}
	return n
}

func (h *Handler) loadCase(id uuid.UUID) (models.Case, error) {
	var cs models.Case
	err := h.db.
		Preload("Deadlines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Filings", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&cs, "id = ?", id).Error
	if err != nil {
		return cs, err
	}

	// never send null
	if cs.Deadlines == nil {
		cs.Deadlines = []models.Deadline{}
	}
	if cs.Filings == nil {
		cs.Filings = []models.Filing{}
	}
	if cs.Tasks == nil {
		cs.Tasks = []models.Task{}
	}
	if cs.Files == nil {
		cs.Files = []models.CaseFile{}
	}
	return cs, nil
}

// Get Case godoc
// @Summary      Case detail
// @Description  Case with its deadlines, filings, tasks and documents
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	cs, err := h.loadCase(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	return c.JSON(cs)
}

// Update Case godoc
// @Summary      Update case
// @Description  Partial update. Moving the case to another client re-reads that client's name.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  UpdateCaseRequest  true  "Fields to change"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	if in.Category != nil {
		cs.Category = models.CaseCategory(*in.Category)
	}
	set(&cs.Name, in.Name)
	set(&cs.Docket, in.Docket)
	set(&cs.ProcessType, in.ProcessType)
	set(&cs.Status, in.Status)
	set(&cs.Motive, in.Motive)
	set(&cs.Pathology, in.Pathology)
	if in.PaymentStatus != nil {
		cs.PaymentStatus = models.PaymentStatus(*in.PaymentStatus)
	}
	if in.ClientID != nil {
		cl, err := lookupClient(h.db, *in.ClientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return clientNotFound(c)
			}
			return fiber.ErrInternalServerError
		}
		cs.ClientID, cs.ClientName = cl.ID, cl.Name
	}
	clearProceedings(&cs)

	if err := h.db.Model(&cs).Select(
		"category", "name", "client_id", "client_name", "docket", "process_type",
		"status", "motive", "pathology", "payment_status",
	).Updates(&cs).Error; err != nil {
		h.log.Error("update case", "case", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not update case")
	}

	out, err := h.loadCase(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}

// Set Payment godoc
// @Summary      Set case payment status
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  SetPaymentRequest  true  "Pagado | Debe"
// @Success      200  {object}  map[string]any  "id, payment_status"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/payment [patch]
func (h *Handler) SetPayment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in SetPaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	res := h.db.Model(&models.Case{}).Where("id = ?", id).Update("payment_status", in.PaymentStatus)
	if res.Error != nil {
		h.log.Error("set payment", "case", id, "error", res.Error)
		return fiber.NewError(fiber.StatusInternalServerError, "could not update payment status")
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{"id": id, "payment_status": in.PaymentStatus})
}

// Delete Case godoc
// @Summary      Delete case
// @Description  Admin only. Removes the case with its deadlines, filings, tasks and stored documents.
// @Tags         cases
// @Security     BearerAuth
// @Param        id   path string true "case id (uuid)"
// @Success      204
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var keys []string
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var cs models.Case
		if err := tx.Select("id").First(&cs, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CaseFile{}).Where("case_id = ?", id).Pluck("key", &keys).Error; err != nil {
			return err
		}
		for _, child := range []any{&models.Deadline{}, &models.Filing{}, &models.Task{}, &models.CaseFile{}} {
			if err := tx.Where("case_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Case{}, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		h.log.Error("delete case", "case", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not delete case")
	}

	// rows are gone; orphaned objects are only logged
	if len(keys) > 0 && h.store != nil && h.store.Configured() {
		if err := h.store.BulkDelete(c.UserContext(), keys); err != nil {
			h.log.Warn("delete case documents", "case", id, "keys", len(keys), "error", err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}
