package clients

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/auth"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// injectAuth puts the auth locals into the Fiber context without a real JWT.
func injectAuth(userID uuid.UUID, role models.Role) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", string(role))
		return c.Next()
	}
}

func newTestApp(db *gorm.DB, role models.Role) *fiber.App {
	h := NewHandler(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(uuid.New(), role))

	app.Post("/api/clients", h.Create)
	app.Get("/api/clients", h.List)
	app.Get("/api/clients/:id", h.Get)
	app.Put("/api/clients/:id", h.Update)
	app.Delete("/api/clients/:id", auth.RequireRole(models.RoleAdmin), h.Delete)
	app.Post("/api/clients/:id/debts", h.AddDebt)
	app.Patch("/api/clients/:id/debts/:debtID/pay", h.PayDebt)
	app.Delete("/api/clients/:id/debts/:debtID", h.DeleteDebt)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp
}

func seedClient(t *testing.T, db *gorm.DB, name string, createdAt time.Time) models.Client {
	t.Helper()
	cl := models.Client{Name: name, Email: strings.ToLower(name) + "@x.com", CreatedAt: createdAt}
	require.NoError(t, db.Create(&cl).Error)
	return cl
}

func seedCase(t *testing.T, db *gorm.DB, cl models.Client, payment models.PaymentStatus) models.Case {
	t.Helper()
	cs := models.Case{
		Category: models.CategoryConsulta, Name: "Case of " + cl.Name,
		ClientID: cl.ID, ClientName: cl.Name, PaymentStatus: payment,
	}
	require.NoError(t, db.Create(&cs).Error)
	return cs
}

type listBody struct {
	Total int64            `json:"total"`
	Items []ClientListItem `json:"items"`
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_Create_Then_List_RoundTrip(t *testing.T) {
	app := newTestApp(openTestDB(t), models.RoleStaff)

	var created models.Client
	resp := do(t, app, "POST", "/api/clients", `{"name":" Juan Perez ","email":"JUAN@x.com","tax_id":"20-12345678-9","enrolled_at":"05/03/2024"}`, &created)
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "Juan Perez", created.Name)
	assert.Equal(t, "juan@x.com", created.Email)

	var list listBody
	resp = do(t, app, "GET", "/api/clients", "", &list)
	require.Equal(t, 200, resp.StatusCode)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)
	assert.Equal(t, "current", string(list.Items[0].DebtStatus))
}

func Test_Create_Validation(t *testing.T) {
	app := newTestApp(openTestDB(t), models.RoleStaff)

	var out struct {
		Errors map[string][]string `json:"errors"`
	}
	resp := do(t, app, "POST", "/api/clients", `{"email":"nope","tax_id":"x","enrolled_at":"31/02/2024"}`, &out)
	require.Equal(t, 400, resp.StatusCode)
	for _, f := range []string{"name", "email", "tax_id", "enrolled_at"} {
		assert.Contains(t, out.Errors, f)
	}
}

func Test_BlankName_Rejected(t *testing.T) {
	db := openTestDB(t)
	cl := seedClient(t, db, "Olga", time.Now())
	app := newTestApp(db, models.RoleStaff)

	var out models.ValidationErrorResponse
	resp := do(t, app, "POST", "/api/clients", `{"name":"   "}`, &out)
	require.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, []string{"This field is required"}, out.Errors["name"])

	resp = do(t, app, "PUT", "/api/clients/"+cl.ID.String(), `{"name":" \t "}`, nil)
	require.Equal(t, 400, resp.StatusCode)

	var stored models.Client
	require.NoError(t, db.First(&stored, "id = ?", cl.ID).Error)
	assert.Equal(t, "Olga", stored.Name)

	var count int64
	require.NoError(t, db.Model(&models.Client{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func Test_List_DebtFacet_And_Search(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	owes := seedClient(t, db, "Ana", now.Add(-2*time.Hour))
	paid := seedClient(t, db, "Bruno", now.Add(-time.Hour))
	direct := seedClient(t, db, "Carla", now)

	seedCase(t, db, owes, models.PaymentOwes)
	seedCase(t, db, paid, models.PaymentPaid)
	require.NoError(t, db.Create(&models.Debt{ClientID: direct.ID, Concept: "Fees", AmountCents: 1500}).Error)

	app := newTestApp(db, models.RoleStaff)

	var list listBody
	do(t, app, "GET", "/api/clients", "", &list)
	require.Len(t, list.Items, 3)
	// newest first
	assert.Equal(t, "Carla", list.Items[0].Name)
	assert.Equal(t, int64(1500), list.Items[0].UnpaidDebtCents)

	do(t, app, "GET", "/api/clients?debt=owes", "", &list)
	names := []string{}
	for _, it := range list.Items {
		names = append(names, it.Name)
	}
	assert.ElementsMatch(t, []string{"Ana", "Carla"}, names)

	do(t, app, "GET", "/api/clients?debt=current", "", &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Bruno", list.Items[0].Name)

	do(t, app, "GET", "/api/clients?q=BRU&debt=owes", "", &list)
	assert.Empty(t, list.Items)
	assert.NotNil(t, list.Items)
}

func Test_List_Paginates(t *testing.T) {
	db := openTestDB(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		seedClient(t, db, "Client"+string(rune('A'+i)), base.Add(time.Duration(i)*time.Minute))
	}
	app := newTestApp(db, models.RoleStaff)

	var list listBody
	do(t, app, "GET", "/api/clients?page=2&pageSize=2", "", &list)
	assert.Equal(t, int64(5), list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "ClientC", list.Items[0].Name)
}

func Test_Get_ShowsOwingCases(t *testing.T) {
	db := openTestDB(t)
	cl := seedClient(t, db, "Dario", time.Now())
	owing := seedCase(t, db, cl, "")
	seedCase(t, db, cl, models.PaymentPaid)
	app := newTestApp(db, models.RoleStaff)

	var detail ClientDetail
	resp := do(t, app, "GET", "/api/clients/"+cl.ID.String(), "", &detail)
	require.Equal(t, 200, resp.StatusCode)
	require.Len(t, detail.OwingCases, 1)
	assert.Equal(t, owing.ID, detail.OwingCases[0].ID)
	assert.Equal(t, "owes", string(detail.DebtStatus))

	resp = do(t, app, "GET", "/api/clients/"+uuid.NewString(), "", nil)
	assert.Equal(t, 404, resp.StatusCode)
	resp = do(t, app, "GET", "/api/clients/not-a-uuid", "", nil)
	assert.Equal(t, 400, resp.StatusCode)
}

func Test_Update_RenameRefreshesCasesAndEvents(t *testing.T) {
	db := openTestDB(t)
	cl := seedClient(t, db, "Elena", time.Now())
	cs := seedCase(t, db, cl, models.PaymentOwes)
	ev := models.Event{Title: "Hearing", Date: "2025-01-10", ClientID: &cl.ID, ClientName: cl.Name}
	require.NoError(t, db.Create(&ev).Error)
	app := newTestApp(db, models.RoleStaff)

	var updated models.Client
	resp := do(t, app, "PUT", "/api/clients/"+cl.ID.String(), `{"name":"Elena Ruiz"}`, &updated)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Elena Ruiz", updated.Name)
	assert.Equal(t, cl.Email, updated.Email, "untouched fields stay")

	var gotCase models.Case
	require.NoError(t, db.First(&gotCase, "id = ?", cs.ID).Error)
	assert.Equal(t, "Elena Ruiz", gotCase.ClientName)

	var gotEvent models.Event
	require.NoError(t, db.First(&gotEvent, "id = ?", ev.ID).Error)
	assert.Equal(t, "Elena Ruiz", gotEvent.ClientName)
}

func Test_Delete_AdminOnly_OrphansCases(t *testing.T) {
	db := openTestDB(t)
	cl := seedClient(t, db, "Fede", time.Now())
	cs := seedCase(t, db, cl, models.PaymentOwes)

	staff := newTestApp(db, models.RoleStaff)
	resp := do(t, staff, "DELETE", "/api/clients/"+cl.ID.String(), "", nil)
	assert.Equal(t, 403, resp.StatusCode)

	admin := newTestApp(db, models.RoleAdmin)
	resp = do(t, admin, "DELETE", "/api/clients/"+cl.ID.String(), "", nil)
	require.Equal(t, 204, resp.StatusCode)

	var kept models.Case
	require.NoError(t, db.First(&kept, "id = ?", cs.ID).Error)
	assert.Equal(t, cl.ID, kept.ClientID)

	// the orphaned case no longer counts toward any client
	var list listBody
	do(t, admin, "GET", "/api/clients", "", &list)
	assert.Empty(t, list.Items)

	resp = do(t, admin, "DELETE", "/api/clients/"+cl.ID.String(), "", nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func Test_Debts_Add_Pay_Idempotent_Delete(t *testing.T) {
	db := openTestDB(t)
	cl := seedClient(t, db, "Gabi", time.Now())
	app := newTestApp(db, models.RoleStaff)
	base := "/api/clients/" + cl.ID.String() + "/debts"

	resp := do(t, app, "POST", base, `{"concept":"Fees","amount_cents":0}`, nil)
	assert.Equal(t, 400, resp.StatusCode)

	var invalid models.ValidationErrorResponse
	resp = do(t, app, "POST", base, `{"concept":"Fees","amount_cents":-500}`, &invalid)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, []string{"Must be greater than 0"}, invalid.Errors["amount_cents"])

	var d models.Debt
	resp = do(t, app, "POST", base, `{"concept":"Fees","amount_cents":25000,"date":"2025-02-01"}`, &d)
	require.Equal(t, 201, resp.StatusCode)
	assert.False(t, d.Paid)

	for i := 0; i < 2; i++ {
		var paid models.Debt
		resp = do(t, app, "PATCH", base+"/"+d.ID.String()+"/pay", "", &paid)
		require.Equal(t, 200, resp.StatusCode)
		assert.True(t, paid.Paid)
	}

	var detail ClientDetail
	do(t, app, "GET", "/api/clients/"+cl.ID.String(), "", &detail)
	assert.Equal(t, int64(0), detail.UnpaidDebtCents)
	assert.Equal(t, "current", string(detail.DebtStatus))

	resp = do(t, app, "DELETE", base+"/"+d.ID.String(), "", nil)
	assert.Equal(t, 204, resp.StatusCode)
	resp = do(t, app, "DELETE", base+"/"+d.ID.String(), "", nil)
	assert.Equal(t, 404, resp.StatusCode)

	resp = do(t, app, "POST", "/api/clients/"+uuid.NewString()+"/debts", `{"concept":"Fees","amount_cents":10}`, nil)
	assert.Equal(t, 404, resp.StatusCode)
}
