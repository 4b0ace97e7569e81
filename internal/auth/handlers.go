package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
	"github.com/aldoetobex/legal-desk-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup
type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	// Only honoured when an admin creates the account
	Role string `json:"role" validate:"omitempty,oneof=admin staff"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Request body for /auth/link and /auth/reset
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=120"`
}

// Request body for /auth/link/verify
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Request body for /auth/reset/confirm
type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Request body for /me/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// Standard auth response
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
}

/* ============================== Handler ================================= */

// Options tunes how one-off links are delivered.
type Options struct {
	// Dev echoes link and reset tokens in the response body.
	Dev bool
	// BaseURL is the frontend address the links point at.
	BaseURL string
	// Topic prefixes the per-user topic links are published to.
	Topic string
}

type Handler struct {
	db     *gorm.DB
	tokens *Tokens
	pub    notify.Publisher
	log    *slog.Logger
	opts   Options
}

func NewHandler(db *gorm.DB, tokens *Tokens, pub notify.Publisher, log *slog.Logger, opts Options) *Handler {
	return &Handler{db: db, tokens: tokens, pub: pub, log: log, opts: opts}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// stamp fingerprints the current password hash so reset tokens die once it changes.
func stamp(hash string) string {
	if len(hash) < 12 {
		return hash
	}
	return hash[len(hash)-12:]
}

func (h *Handler) session(c *fiber.Ctx, u *models.User, status int) error {
	token, err := h.tokens.Issue(u.ID.String(), string(u.Role), PurposeSession, "")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(status).JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a user. The very first account becomes admin and gets a session; afterwards only an admin may add users and receives the new user's profile.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse  "first account; admins get UserProfileResponse"
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      403      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = normalizeEmail(in.Email)

	// Validate request (Laravel-like error shape)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var users int64
	if err := h.db.Model(&models.User{}).Count(&users).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	role := models.RoleStaff
	switch {
	case users == 0:
		role = models.RoleAdmin
	case !IsAdmin(c):
		return fiber.NewError(fiber.StatusForbidden, "only an admin can add users")
	case in.Role != "":
		role = models.Role(in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	u := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		Name:         strings.TrimSpace(in.Name),
	}
	if err := h.db.Create(&u).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	// the admin keeps their own session; the new user signs in separately
	if users > 0 {
		return c.Status(fiber.StatusCreated).JSON(profileOf(&u))
	}
	return h.session(c, &u, fiber.StatusCreated)
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Email = normalizeEmail(in.Email)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	return h.session(c, &u, fiber.StatusOK)
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	return c.JSON(profileOf(&u))
}

func profileOf(u *models.User) UserProfileResponse {
	return UserProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

/* ============================ Login links =============================== */

// deliver publishes a one-off link to the user's private topic. In dev the
// token is echoed back instead.
func (h *Handler) deliver(c *fiber.Ctx, u *models.User, title, path, token string) error {
	link := h.opts.BaseURL + path + "?token=" + token
	if h.opts.Dev {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true, "token": token, "link": link})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()
	err := h.pub.Publish(ctx, notify.UserTopic(h.opts.Topic, u.ID.String()), notify.Message{
		Title:    title,
		Body:     "Open the link to continue. It expires soon.",
		Priority: "normal",
		Click:    link,
	})
	if err != nil {
		h.log.Error("link delivery failed", "user", u.ID, "error", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

// @Summary      Request a login link
// @Description  Issues a short-lived sign-in link. Always answers 202 so callers cannot tell which emails exist.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  EmailRequest  true  "Email"
// @Success      202
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /auth/link [post]
func (h *Handler) RequestLink(c *fiber.Ctx) error {
	var in EmailRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Email = normalizeEmail(in.Email)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
		}
		return fiber.ErrInternalServerError
	}

	// a fresh nonce also voids any earlier unused link
	nonce := uuid.NewString()
	if err := h.db.Model(&u).Update("link_nonce", nonce).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	token, err := h.tokens.Issue(u.ID.String(), string(u.Role), PurposeLoginLink, nonce)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return h.deliver(c, &u, "Your sign-in link", "/login/verify", token)
}

// @Summary      Verify a login link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  TokenRequest  true  "Link token"
// @Success      200  {object}  AuthResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/link/verify [post]
func (h *Handler) VerifyLink(c *fiber.Ctx) error {
	var in TokenRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	claims, err := h.tokens.Parse(in.Token, PurposeLoginLink)
	if err != nil || claims.Stamp == "" {
		return fiber.ErrUnauthorized
	}

	// consume the nonce; a second use finds nothing to clear
	res := h.db.Model(&models.User{}).
		Where("id = ? AND link_nonce = ?", claims.Sub, claims.Stamp).
		Update("link_nonce", "")
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "login link already used")
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", claims.Sub).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	return h.session(c, &u, fiber.StatusOK)
}

/* =========================== Password reset ============================= */

// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  EmailRequest  true  "Email"
// @Success      202
// @Router       /auth/reset [post]
func (h *Handler) RequestReset(c *fiber.Ctx) error {
	var in EmailRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Email = normalizeEmail(in.Email)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
		}
		return fiber.ErrInternalServerError
	}

	token, err := h.tokens.Issue(u.ID.String(), string(u.Role), PurposeReset, stamp(u.PasswordHash))
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return h.deliver(c, &u, "Reset your password", "/reset", token)
}

// @Summary      Confirm a password reset
// @Description  Sets a new password. The token stops working once the password changes.
// @Tags         auth
// @Accept       json
// @Param        payload  body  ResetConfirmRequest  true  "Token and new password"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/reset/confirm [post]
func (h *Handler) ConfirmReset(c *fiber.Ctx) error {
	var in ResetConfirmRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	claims, err := h.tokens.Parse(in.Token, PurposeReset)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	var u models.User
	if err := h.db.First(&u, "id = ?", claims.Sub).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if claims.Stamp != stamp(u.PasswordHash) {
		return fiber.NewError(fiber.StatusUnauthorized, "reset link already used")
	}

	if err := h.setPassword(&u, in.Password); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// @Summary      Change my password
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Param        payload  body  ChangePasswordRequest  true  "Current and new password"
// @Success      204
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me/password [put]
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var in ChangePasswordRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "current password is wrong")
	}

	if err := h.setPassword(&u, in.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) setPassword(u *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.Model(u).Update("password_hash", string(hash)).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return nil
}
