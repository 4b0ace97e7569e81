// @title           Legal Desk API
// @version         1.0
// @description     Case management for a small legal practice: clients, cases with deadlines, filings and tasks, calendar events, payment tracking and deadline notifications.
// @contact.name    Aldo Rifki Putra
// @contact.email   aldoetobex@gmail.com
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	_ "github.com/aldoetobex/legal-desk-backend/docs"
	"github.com/aldoetobex/legal-desk-backend/internal/auth"
	"github.com/aldoetobex/legal-desk-backend/internal/cases"
	"github.com/aldoetobex/legal-desk-backend/internal/clients"
	"github.com/aldoetobex/legal-desk-backend/internal/config"
	"github.com/aldoetobex/legal-desk-backend/internal/events"
	"github.com/aldoetobex/legal-desk-backend/internal/logging"
	"github.com/aldoetobex/legal-desk-backend/internal/notifications"
	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/internal/storage"
	"github.com/aldoetobex/legal-desk-backend/pkg/database"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Auth.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	app := newApp(cfg, db, notify.New(cfg.Notify, log), storage.NewSupabase(cfg.Storage), log)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	log.Info("server running", "addr", addr, "env", cfg.App.Env, "tz", cfg.App.Location.String())
	if err := app.Listen(addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newApp(cfg config.Config, db *gorm.DB, pub notify.Publisher, store cases.ObjectStore, log *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    64 * 1024 * 1024, // ten 10MB documents per upload
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:   "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		TimeZone: cfg.App.Location.String(),
	}))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	api := app.Group("/api")

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.LoginLinkTTL, cfg.Auth.ResetTTL)
	requireAuth := auth.RequireAuth(tokens)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	// Auth
	authH := auth.NewHandler(db, tokens, pub, log, auth.Options{
		Dev:     cfg.App.Dev(),
		BaseURL: cfg.App.BaseURL,
		Topic:   cfg.Notify.Topic,
	})
	api.Post("/signup", auth.OptionalAuth(tokens), authH.Signup)
	api.Post("/login", authH.Login)
	api.Post("/auth/link", authH.RequestLink)
	api.Post("/auth/link/verify", authH.VerifyLink)
	api.Post("/auth/reset", authH.RequestReset)
	api.Post("/auth/reset/confirm", authH.ConfirmReset)
	api.Get("/me", requireAuth, authH.Me)
	api.Put("/me/password", requireAuth, authH.ChangePassword)

	// Clients
	clientH := clients.NewHandler(db, log)
	api.Post("/clients", requireAuth, clientH.Create)
	api.Get("/clients", requireAuth, clientH.List)
	api.Get("/clients/:id", requireAuth, clientH.Get)
	api.Put("/clients/:id", requireAuth, clientH.Update)
	api.Delete("/clients/:id", requireAuth, adminOnly, clientH.Delete)
	api.Post("/clients/:id/debts", requireAuth, clientH.AddDebt)
	api.Patch("/clients/:id/debts/:debtID/pay", requireAuth, clientH.PayDebt)
	api.Delete("/clients/:id/debts/:debtID", requireAuth, clientH.DeleteDebt)

	// Cases
	caseH := cases.NewHandler(db, store, log)
	api.Post("/cases", requireAuth, caseH.Create)
	api.Get("/cases", requireAuth, caseH.List)
	api.Get("/cases/:id", requireAuth, caseH.Get)
	api.Put("/cases/:id", requireAuth, caseH.Update)
	api.Patch("/cases/:id/payment", requireAuth, caseH.SetPayment)
	api.Delete("/cases/:id", requireAuth, adminOnly, caseH.Delete)

	api.Post("/cases/:id/deadlines", requireAuth, caseH.AddDeadline)
	api.Delete("/cases/:id/deadlines/:itemID", requireAuth, caseH.DeleteDeadline)
	api.Post("/cases/:id/filings", requireAuth, caseH.AddFiling)
	api.Patch("/cases/:id/filings/:itemID", requireAuth, caseH.UpdateFiling)
	api.Delete("/cases/:id/filings/:itemID", requireAuth, caseH.DeleteFiling)
	api.Post("/cases/:id/tasks", requireAuth, caseH.AddTask)
	api.Patch("/cases/:id/tasks/:itemID", requireAuth, caseH.UpdateTask)
	api.Delete("/cases/:id/tasks/:itemID", requireAuth, caseH.DeleteTask)

	// Documents
	api.Post("/cases/:id/files", requireAuth, caseH.UploadFile)
	api.Get("/files/:fileID/signed-url", requireAuth, caseH.SignedDownloadURL)
	api.Delete("/files/:fileID", requireAuth, caseH.DeleteFile)

	// Events
	eventH := events.NewHandler(db, cfg.App.Location, log)
	api.Post("/events", requireAuth, eventH.Create)
	api.Get("/events", requireAuth, eventH.List)
	api.Get("/events/:id", requireAuth, eventH.Get)
	api.Put("/events/:id", requireAuth, eventH.Update)
	api.Delete("/events/:id", requireAuth, eventH.Delete)

	// Notifications
	notifH := notifications.NewHandler(notifications.NewService(db, pub, cfg.Notify.Topic, cfg.App.Location, log))
	api.Get("/notifications", requireAuth, notifH.Feed)
	api.Get("/notifications/urgent", requireAuth, notifH.Urgent)
	api.Get("/notifications/pending", requireAuth, notifH.Pending)
	api.Get("/notifications/channel", requireAuth, notifH.Channel)
	api.Post("/notifications/dispatch", requireAuth, adminOnly, notifH.Dispatch)

	return app
}
