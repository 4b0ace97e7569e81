package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Token purposes. Only session tokens open the API.
const (
	PurposeSession   = "session"
	PurposeLoginLink = "login_link"
	PurposeReset     = "password_reset"
)

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub     string `json:"sub"`           // user ID
	Role    string `json:"role"`          // "admin" | "staff"
	Purpose string `json:"pur"`           // session | login_link | password_reset
	Stamp   string `json:"stm,omitempty"` // password fingerprint (reset) or nonce (login link)
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens signs and verifies every token the identity service hands out.
type Tokens struct {
	secret     []byte
	SessionTTL time.Duration
	LinkTTL    time.Duration
	ResetTTL   time.Duration
}

func NewTokens(secret string, session, link, reset time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), SessionTTL: session, LinkTTL: link, ResetTTL: reset}
}

// Issue signs a token for the given user, role and purpose.
func (t *Tokens) Issue(userID, role, purpose, stamp string) (string, error) {
	ttl := t.SessionTTL
	switch purpose {
	case PurposeLoginLink:
		ttl = t.LinkTTL
	case PurposeReset:
		ttl = t.ResetTTL
	}
	now := time.Now()
	claims := &Claims{
		Sub:     userID,
		Role:    role,
		Purpose: purpose,
		Stamp:   stamp,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies signature, expiry and purpose.
func (t *Tokens) Parse(tokenStr, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Purpose != purpose {
		return nil, errors.New("invalid token purpose")
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer session JWT and injects userID and role into the context.
func RequireAuth(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		claims, err := tokens.Parse(strings.TrimPrefix(h, "Bearer "), PurposeSession)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("userID", claims.Sub)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// OptionalAuth behaves like RequireAuth but lets anonymous requests through.
func OptionalAuth(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			if claims, err := tokens.Parse(strings.TrimPrefix(h, "Bearer "), PurposeSession); err == nil {
				c.Locals("userID", claims.Sub)
				c.Locals("role", claims.Role)
			}
		}
		return c.Next()
	}
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v := c.Locals("userID"); v != nil {
		return v.(string)
	}
	panic(errors.New("user not in context"))
}

// MustRole reads the authenticated user role from context or panics (programming error).
func MustRole(c *fiber.Ctx) string {
	if v := c.Locals("role"); v != nil {
		return v.(string)
	}
	panic(errors.New("role not in context"))
}

// IsAdmin reports whether the request carries the admin role claim.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals("role").(string)
	return role == string(models.RoleAdmin)
}

// RequireRole ensures the authenticated user has the expected role.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if MustRole(c) != string(role) {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusBadGateway:
		return "BAD_GATEWAY"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	// Fiber errors carry status codes
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			msg = fe.Message
		}
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
