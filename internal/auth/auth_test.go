package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

// openTestDB opens a private in-memory sqlite database and migrates it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recorder keeps every published message.
type recorder struct {
	mu   sync.Mutex
	msgs map[string][]notify.Message
}

func (r *recorder) Publish(_ context.Context, topic string, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.msgs == nil {
		r.msgs = map[string][]notify.Message{}
	}
	r.msgs[topic] = append(r.msgs[topic], msg)
	return nil
}

var testTokens = NewTokens("test-secret", time.Hour, time.Minute, time.Minute)

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/signup", OptionalAuth(testTokens), h.Signup)
	app.Post("/api/login", h.Login)
	app.Post("/api/auth/link", h.RequestLink)
	app.Post("/api/auth/link/verify", h.VerifyLink)
	app.Post("/api/auth/reset", h.RequestReset)
	app.Post("/api/auth/reset/confirm", h.ConfirmReset)
	app.Get("/api/me", RequireAuth(testTokens), h.Me)
	app.Put("/api/me/password", RequireAuth(testTokens), h.ChangePassword)
	app.Delete("/api/admin-only", RequireAuth(testTokens), RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func newHandler(db *gorm.DB, pub notify.Publisher, dev bool) *Handler {
	return NewHandler(db, testTokens, pub, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Dev: dev, BaseURL: "http://front", Topic: "agenda",
	})
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func signupAdmin(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, out := call(t, app, "POST", "/api/signup", "", `{"name":"Admin","email":"Admin@Estudio.com ","password":"password1"}`)
	if resp.StatusCode != 201 {
		t.Fatalf("signup want 201, got %d %v", resp.StatusCode, out)
	}
	if out["role"] != "admin" {
		t.Fatalf("first user should be admin, got %v", out["role"])
	}
	return out["token"].(string)
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_Signup_FirstUserIsAdmin_ThenAdminOnly(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(newHandler(db, &recorder{}, false))
	adminToken := signupAdmin(t, app)

	// anonymous signups are closed once an account exists
	resp, _ := call(t, app, "POST", "/api/signup", "", `{"name":"Eve","email":"eve@x.com","password":"password1"}`)
	if resp.StatusCode != 403 {
		t.Fatalf("anonymous second signup want 403, got %d", resp.StatusCode)
	}

	resp, out := call(t, app, "POST", "/api/signup", adminToken, `{"name":"Staff","email":"staff@x.com","password":"password1"}`)
	if resp.StatusCode != 201 || out["role"] != "staff" || out["email"] != "staff@x.com" {
		t.Fatalf("admin-created user want 201 staff profile, got %d %v", resp.StatusCode, out)
	}
	// the admin gets the profile, never a session for someone else
	if _, ok := out["token"]; ok {
		t.Fatalf("admin-created user must not return a token: %v", out)
	}
	if resp, me := call(t, app, "GET", "/api/me", adminToken, ""); resp.StatusCode != 200 || me["role"] != "admin" {
		t.Fatalf("admin session should stay valid: %d %v", resp.StatusCode, me)
	}

	// duplicate email
	resp, _ = call(t, app, "POST", "/api/signup", adminToken, `{"name":"Staff","email":"staff@x.com","password":"password1"}`)
	if resp.StatusCode != 409 {
		t.Fatalf("duplicate want 409, got %d", resp.StatusCode)
	}
}

func Test_Signup_Validation(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, false))
	resp, out := call(t, app, "POST", "/api/signup", "", `{"name":"A","email":"bad","password":"123"}`)
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
	errs, _ := out["errors"].(map[string]any)
	for _, f := range []string{"name", "email", "password"} {
		if _, ok := errs[f]; !ok {
			t.Fatalf("missing error for %s: %v", f, out)
		}
	}
}

func Test_Login_And_Me(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, false))
	signupAdmin(t, app)

	resp, _ := call(t, app, "POST", "/api/login", "", `{"email":"admin@estudio.com","password":"wrong-pass"}`)
	if resp.StatusCode != 401 {
		t.Fatalf("bad password want 401, got %d", resp.StatusCode)
	}

	resp, out := call(t, app, "POST", "/api/login", "", `{"email":"ADMIN@estudio.com","password":"password1"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("login want 200, got %d", resp.StatusCode)
	}
	token := out["token"].(string)

	resp, me := call(t, app, "GET", "/api/me", token, "")
	if resp.StatusCode != 200 || me["email"] != "admin@estudio.com" || me["role"] != "admin" {
		t.Fatalf("me: %d %v", resp.StatusCode, me)
	}

	resp, _ = call(t, app, "GET", "/api/me", "", "")
	if resp.StatusCode != 401 {
		t.Fatalf("me without token want 401, got %d", resp.StatusCode)
	}
}

func Test_RoleClaim_GuardsAdminRoutes(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, false))
	adminToken := signupAdmin(t, app)
	call(t, app, "POST", "/api/signup", adminToken, `{"name":"Staff","email":"staff@x.com","password":"password1"}`)
	_, out := call(t, app, "POST", "/api/login", "", `{"email":"staff@x.com","password":"password1"}`)
	staffToken := out["token"].(string)

	if resp, _ := call(t, app, "DELETE", "/api/admin-only", staffToken, ""); resp.StatusCode != 403 {
		t.Fatalf("staff want 403, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "DELETE", "/api/admin-only", adminToken, ""); resp.StatusCode != 204 {
		t.Fatalf("admin want 204, got %d", resp.StatusCode)
	}
}

func Test_LoginLink_Dev_RoundTrip(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, true))
	signupAdmin(t, app)

	resp, out := call(t, app, "POST", "/api/auth/link", "", `{"email":"admin@estudio.com"}`)
	if resp.StatusCode != 202 {
		t.Fatalf("want 202, got %d", resp.StatusCode)
	}
	linkToken, _ := out["token"].(string)
	if linkToken == "" {
		t.Fatalf("dev mode should echo the token: %v", out)
	}

	// a link token is not a session
	if resp, _ := call(t, app, "GET", "/api/me", linkToken, ""); resp.StatusCode != 401 {
		t.Fatalf("link token must not open the API, got %d", resp.StatusCode)
	}

	resp, out = call(t, app, "POST", "/api/auth/link/verify", "", `{"token":"`+linkToken+`"}`)
	if resp.StatusCode != 200 || out["token"] == "" {
		t.Fatalf("verify: %d %v", resp.StatusCode, out)
	}

	// single use
	if resp, _ := call(t, app, "POST", "/api/auth/link/verify", "", `{"token":"`+linkToken+`"}`); resp.StatusCode != 401 {
		t.Fatalf("reused link want 401, got %d", resp.StatusCode)
	}
}

func Test_LoginLink_NewLinkVoidsOlder(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, true))
	signupAdmin(t, app)

	_, first := call(t, app, "POST", "/api/auth/link", "", `{"email":"admin@estudio.com"}`)
	_, second := call(t, app, "POST", "/api/auth/link", "", `{"email":"admin@estudio.com"}`)

	if resp, _ := call(t, app, "POST", "/api/auth/link/verify", "", `{"token":"`+first["token"].(string)+`"}`); resp.StatusCode != 401 {
		t.Fatalf("superseded link want 401, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "POST", "/api/auth/link/verify", "", `{"token":"`+second["token"].(string)+`"}`); resp.StatusCode != 200 {
		t.Fatalf("latest link want 200, got %d", resp.StatusCode)
	}
}

func Test_LoginLink_PublishedToUserTopic(t *testing.T) {
	db := openTestDB(t)
	rec := &recorder{}
	app := newTestApp(newHandler(db, rec, false))
	signupAdmin(t, app)

	resp, out := call(t, app, "POST", "/api/auth/link", "", `{"email":"admin@estudio.com"}`)
	if resp.StatusCode != 202 || out["token"] != nil {
		t.Fatalf("prod mode must not echo token: %d %v", resp.StatusCode, out)
	}

	var u models.User
	if err := db.First(&u).Error; err != nil {
		t.Fatal(err)
	}
	msgs := rec.msgs[notify.UserTopic("agenda", u.ID.String())]
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0].Click, "http://front/login/verify?token=") {
		t.Fatalf("link not published: %#v", rec.msgs)
	}

	// unknown email answers the same way and publishes nothing
	resp, _ = call(t, app, "POST", "/api/auth/link", "", `{"email":"ghost@x.com"}`)
	if resp.StatusCode != 202 || len(rec.msgs) != 1 {
		t.Fatalf("unknown email: %d %v", resp.StatusCode, rec.msgs)
	}
}

func Test_PasswordReset_SingleUse(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, true))
	signupAdmin(t, app)

	_, out := call(t, app, "POST", "/api/auth/reset", "", `{"email":"admin@estudio.com"}`)
	resetToken := out["token"].(string)

	body := `{"token":"` + resetToken + `","password":"brand-new-1"}`
	if resp, _ := call(t, app, "POST", "/api/auth/reset/confirm", "", body); resp.StatusCode != 204 {
		t.Fatalf("confirm want 204, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "POST", "/api/auth/reset/confirm", "", body); resp.StatusCode != 401 {
		t.Fatalf("reused token want 401, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "POST", "/api/login", "", `{"email":"admin@estudio.com","password":"brand-new-1"}`); resp.StatusCode != 200 {
		t.Fatalf("login with new password want 200, got %d", resp.StatusCode)
	}
}

func Test_ChangePassword(t *testing.T) {
	app := newTestApp(newHandler(openTestDB(t), &recorder{}, false))
	token := signupAdmin(t, app)

	if resp, _ := call(t, app, "PUT", "/api/me/password", token, `{"current_password":"nope","new_password":"another-1"}`); resp.StatusCode != 401 {
		t.Fatalf("wrong current password want 401, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "PUT", "/api/me/password", token, `{"current_password":"password1","new_password":"another-1"}`); resp.StatusCode != 204 {
		t.Fatalf("change want 204, got %d", resp.StatusCode)
	}
	if resp, _ := call(t, app, "POST", "/api/login", "", `{"email":"admin@estudio.com","password":"another-1"}`); resp.StatusCode != 200 {
		t.Fatalf("login with changed password want 200, got %d", resp.StatusCode)
	}
}
