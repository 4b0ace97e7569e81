package notifications

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-desk-backend/internal/agenda"
	"github.com/aldoetobex/legal-desk-backend/internal/auth"
)

type Counts struct {
	Critical int `json:"critical"`
	Normal   int `json:"normal"`
	Pending  int `json:"pending"`
}

type Feed struct {
	Urgent  []agenda.Notification `json:"urgent"`
	Pending []agenda.Notification `json:"pending"`
	Counts  Counts                `json:"counts"`
}

type Channel struct {
	Topic     string `json:"topic"`
	UserTopic string `json:"user_topic"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func loadError() error {
	return fiber.NewError(fiber.StatusInternalServerError, "could not load notifications")
}

// Notification Feed godoc
// @Summary      Dashboard notifications
// @Description  Deadlines and events due within two days (by date) plus unfulfilled filings and tasks (by title)
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Feed
// @Failure      500  {object}  models.ErrorResponse
// @Router       /notifications [get]
func (h *Handler) Feed(c *fiber.Ctx) error {
	snap, err := h.svc.Load(c.UserContext())
	if err != nil {
		h.svc.log.Error("load notifications", "error", err)
		return loadError()
	}

	feed := Feed{
		Urgent:  agenda.Urgent(h.svc.Now(), snap.Cases, snap.Events),
		Pending: agenda.Pending(snap.Cases, h.svc.loc),
	}
	for _, n := range feed.Urgent {
		if n.Priority == agenda.PriorityCritical {
			feed.Counts.Critical++
		} else {
			feed.Counts.Normal++
		}
	}
	feed.Counts.Pending = len(feed.Pending)
	return c.JSON(feed)
}

// Urgent Notifications godoc
// @Summary      Urgent notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   agenda.Notification
// @Failure      500  {object}  models.ErrorResponse
// @Router       /notifications/urgent [get]
func (h *Handler) Urgent(c *fiber.Ctx) error {
	list, err := h.svc.Urgent(c.UserContext())
	if err != nil {
		h.svc.log.Error("load urgent notifications", "error", err)
		return loadError()
	}
	return c.JSON(list)
}

// Pending Work godoc
// @Summary      Pending filings and tasks
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   agenda.Notification
// @Failure      500  {object}  models.ErrorResponse
// @Router       /notifications/pending [get]
func (h *Handler) Pending(c *fiber.Ctx) error {
	list, err := h.svc.Pending(c.UserContext())
	if err != nil {
		h.svc.log.Error("load pending work", "error", err)
		return loadError()
	}
	return c.JSON(list)
}

// Notification Channel godoc
// @Summary      Push channel
// @Description  Topics the caller should subscribe to: the shared agenda topic and its private topic
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Channel
// @Router       /notifications/channel [get]
func (h *Handler) Channel(c *fiber.Ctx) error {
	uid, err := uuid.Parse(auth.MustUserID(c))
	if err != nil {
		return fiber.ErrUnauthorized
	}
	return c.JSON(Channel{Topic: h.svc.Topic(), UserTopic: h.svc.UserTopic(uid)})
}

// Dispatch godoc
// @Summary      Publish urgent notifications
// @Description  Admin only. Runs the deadline check now and publishes each urgent entry; delivery is best effort.
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        topic  query string false "override topic"
// @Success      200  {object}  DispatchResult
// @Failure      403  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /notifications/dispatch [post]
func (h *Handler) Dispatch(c *fiber.Ctx) error {
	res, err := h.svc.Dispatch(c.UserContext(), c.Query("topic"))
	if err != nil {
		h.svc.log.Error("dispatch notifications", "error", err)
		return loadError()
	}
	return c.JSON(res)
}
