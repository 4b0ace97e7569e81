package events

import (
	"errors"
	"log/slog"
	"sort"
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

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Date        string `json:"date" validate:"required,caldate"`
	Time        string `json:"time" validate:"omitempty,clock"`
	ClientID    string `json:"client_id" validate:"omitempty,uuid"`
}

// UpdateEventRequest is a partial update. An empty client_id unlinks the client.
type UpdateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Date        *string `json:"date" validate:"omitempty,caldate"`
	Time        *string `json:"time" validate:"omitempty,clock"`
	ClientID    *string `json:"client_id" validate:"omitempty,uuid|len=0"`
}

type Handler struct {
	db  *gorm.DB
	loc *time.Location
	log *slog.Logger
}

func NewHandler(db *gorm.DB, loc *time.Location, log *slog.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{db: db, loc: loc, log: log}
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// resolveClient returns the stored client's id and name, or nils for an empty reference.
func (h *Handler) resolveClient(raw string) (*uuid.UUID, string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, "", nil
	}
	var cl models.Client
	if err := h.db.Select("id", "name").First(&cl, "id = ?", raw).Error; err != nil {
		return nil, "", err
	}
	return &cl.ID, cl.Name, nil
}

func clientError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return validation.Respond(c, map[string][]string{"client_id": {"Client not found"}})
	}
	return fiber.ErrInternalServerError
}

// Create Event godoc
// @Summary      Create calendar event
// @Tags         events
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateEventRequest  true  "Event payload"
// @Success      201  {object}  models.Event
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /events [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateEventRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	clientID, clientName, err := h.resolveClient(in.ClientID)
	if err != nil {
		return clientError(c, err)
	}

	ev := models.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		ClientID:    clientID,
		ClientName:  clientName,
	}
	if err := h.db.Create(&ev).Error; err != nil {
		h.log.Error("create event", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not save event")
	}
	return c.Status(fiber.StatusCreated).JSON(ev)
}

type datedEvent struct {
	ev  models.Event
	day time.Time
	ok  bool
}

// sortByDate orders events by normalised date then time. Events whose date
// cannot be read go last, in fetch order.
func sortByDate(list []datedEvent) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		if !a.day.Equal(b.day) {
			return a.day.Before(b.day)
		}
		return a.ev.Time < b.ev.Time
	})
}

func (h *Handler) parseBound(c *fiber.Ctx, key string, errs map[string][]string) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	t, ok := agenda.ParseDate(raw, h.loc)
	if !ok {
		errs[key] = append(errs[key], "Invalid date (use YYYY-MM-DD or DD/MM/YYYY)")
		return nil
	}
	return &t
}

// List Events godoc
// @Summary      List calendar events
// @Description  Ordered by date then time. from/to are inclusive; q searches title, description and client name.
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Param        from      query string false "first day (YYYY-MM-DD or DD/MM/YYYY)"
// @Param        to        query string false "last day (YYYY-MM-DD or DD/MM/YYYY)"
// @Param        q         query string false "search text"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  models.Page[models.Event]
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /events [get]
func (h *Handler) List(c *fiber.Ctx) error {
	errs := map[string][]string{}
	from := h.parseBound(c, "from", errs)
	to := h.parseBound(c, "to", errs)
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	var all []models.Event
	if err := h.db.WithContext(c.UserContext()).Order("created_at DESC").Find(&all).Error; err != nil {
		h.log.Error("list events", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not load events")
	}

	dated := make([]datedEvent, 0, len(all))
	for _, ev := range agenda.EventFilter(c.Query("q")).Apply(all) {
		day, ok := agenda.ParseDate(ev.Date, h.loc)
		if (from != nil || to != nil) && !ok {
			continue
		}
		if from != nil && day.Before(*from) {
			continue
		}
		if to != nil && day.After(*to) {
			continue
		}
		dated = append(dated, datedEvent{ev: ev, day: day, ok: ok})
	}
	sortByDate(dated)

	items := make([]models.Event, 0, len(dated))
	for _, d := range dated {
		items = append(items, d.ev)
	}

	page, size := pagination.Parse(c)
	return c.JSON(pagination.Slice(items, page, size))
}

// Get Event godoc
// @Summary      Event detail
// @Tags         events
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "event id (uuid)"
// @Success      200  {object}  models.Event
// @Failure      404  {object}  models.ErrorResponse
// @Router       /events/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var ev models.Event
	if err := h.db.First(&ev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	return c.JSON(ev)
}

// Update Event godoc
// @Summary      Update calendar event
// @Tags         events
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "event id (uuid)"
// @Param        payload  body  UpdateEventRequest  true  "Fields to change"
// @Success      200  {object}  models.Event
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /events/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateEventRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	validation.Trim(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var ev models.Event
	if err := h.db.First(&ev, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if in.Title != nil {
		ev.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		ev.Description = strings.TrimSpace(*in.Description)
	}
	if in.Date != nil {
		ev.Date = strings.TrimSpace(*in.Date)
	}
	if in.Time != nil {
		ev.Time = strings.TrimSpace(*in.Time)
	}
	if in.ClientID != nil {
		clientID, clientName, err := h.resolveClient(*in.ClientID)
		if err != nil {
			return clientError(c, err)
		}
		ev.ClientID, ev.ClientName = clientID, clientName
	}

	if err := h.db.Model(&ev).
		Select("title", "description", "date", "time", "client_id", "client_name").
		Updates(&ev).Error; err != nil {
		h.log.Error("update event", "event", id, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not update event")
	}
	return c.JSON(ev)
}

// Delete Event godoc
// @Summary      Delete calendar event
// @Tags         events
// @Security     BearerAuth
// @Param        id   path string true "event id (uuid)"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Router       /events/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	res := h.db.Delete(&models.Event{}, "id = ?", id)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
