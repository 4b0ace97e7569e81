package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/agenda"
	"github.com/aldoetobex/legal-desk-backend/internal/auth"
	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

var (
	art   = time.FixedZone("ART", -3*3600)
	today = time.Date(2025, 6, 10, 21, 30, 0, 0, art) // late evening: UTC is already the 11th
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// recorder keeps published messages; titles listed in fail are rejected.
type recorder struct {
	mu   sync.Mutex
	fail map[string]bool
	got  map[string][]notify.Message
}

func (r *recorder) Publish(_ context.Context, topic string, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[msg.Title] {
		return errors.New("sink unavailable")
	}
	if r.got == nil {
		r.got = map[string][]notify.Message{}
	}
	r.got[topic] = append(r.got[topic], msg)
	return nil
}

func newService(db *gorm.DB, pub notify.Publisher) *Service {
	svc := NewService(db, pub, "agenda", art, discard())
	svc.now = func() time.Time { return today }
	return svc
}

type seeded struct {
	Case   models.Case
	Event  models.Event
	Filing models.Filing
	Today  models.Deadline
	InTwo  models.Deadline
	Done   models.Task
}

// seed stores one case with deadlines around the window edges, one event,
// one open filing and one fulfilled task.
func seed(t *testing.T, db *gorm.DB) seeded {
	t.Helper()
	cl := models.Client{Name: "Ana"}
	require.NoError(t, db.Create(&cl).Error)

	var s seeded
	s.Case = models.Case{Category: models.CategoryJudicial, Name: "Ana v. Employer", Docket: "77/2025", ClientID: cl.ID, ClientName: cl.Name}
	require.NoError(t, db.Create(&s.Case).Error)

	s.Today = models.Deadline{CaseID: s.Case.ID, Name: "Answer", Date: "2025-06-10"}
	s.InTwo = models.Deadline{CaseID: s.Case.ID, Name: "Evidence", Date: "12/06/2025"}
	for _, d := range []*models.Deadline{
		&s.Today, &s.InTwo,
		{CaseID: s.Case.ID, Name: "Too far", Date: "2025-06-13"},
		{CaseID: s.Case.ID, Name: "Yesterday", Date: "2025-06-09"},
		{CaseID: s.Case.ID, Name: "Undated"},
		{CaseID: s.Case.ID, Name: "Garbage", Date: "soon"},
	} {
		require.NoError(t, db.Create(d).Error)
	}

	s.Event = models.Event{Title: "Mediation", Date: "2025-06-11", Time: "10:00"}
	require.NoError(t, db.Create(&s.Event).Error)

	s.Filing = models.Filing{WorkItem: models.WorkItem{CaseID: s.Case.ID, Title: "Bank oficio"}}
	require.NoError(t, db.Create(&s.Filing).Error)
	s.Done = models.Task{WorkItem: models.WorkItem{CaseID: s.Case.ID, Title: "Call expert", Fulfilled: true}}
	require.NoError(t, db.Create(&s.Done).Error)
	return s
}

func newTestApp(svc *Service, userID uuid.UUID, role models.Role) *fiber.App {
	h := NewHandler(svc)
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		c.Locals("role", string(role))
		return c.Next()
	})
	app.Get("/api/notifications", h.Feed)
	app.Get("/api/notifications/urgent", h.Urgent)
	app.Get("/api/notifications/pending", h.Pending)
	app.Get("/api/notifications/channel", h.Channel)
	app.Post("/api/notifications/dispatch", auth.RequireRole(models.RoleAdmin), h.Dispatch)
	return app
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_Feed_UrgentPendingCounts(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	app := newTestApp(newService(db, &recorder{}), uuid.New(), models.RoleStaff)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/notifications", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var feed Feed
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))

	require.Len(t, feed.Urgent, 3)
	assert.Equal(t, "deadline-"+s.Case.ID.String()+"-"+s.Today.ID.String(), feed.Urgent[0].ID)
	assert.Equal(t, "Due TODAY", feed.Urgent[0].Title)
	assert.Equal(t, agenda.PriorityCritical, feed.Urgent[0].Priority)
	assert.Equal(t, "event-"+s.Event.ID.String(), feed.Urgent[1].ID)
	assert.Equal(t, "Due in 1 day", feed.Urgent[1].Title)
	assert.Nil(t, feed.Urgent[1].CaseID)
	assert.Equal(t, "Due in 2 days", feed.Urgent[2].Title)
	assert.Contains(t, feed.Urgent[2].Message, "Docket: 77/2025")

	require.Len(t, feed.Pending, 1)
	assert.Equal(t, "filing-"+s.Case.ID.String()+"-"+s.Filing.ID.String(), feed.Pending[0].ID)

	assert.Equal(t, Counts{Critical: 1, Normal: 2, Pending: 1}, feed.Counts)
}

func Test_Pending_ToggleRemovesExactlyOne(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	extra := models.Task{WorkItem: models.WorkItem{CaseID: s.Case.ID, Title: "Answer client email", DueDate: "2025-07-01"}}
	require.NoError(t, db.Create(&extra).Error)
	svc := newService(db, &recorder{})

	before, err := svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, before, 2)
	// sorted by title, not by due date
	assert.Equal(t, "Pending filing: Bank oficio", before[0].Title)
	assert.Equal(t, "Pending task: Answer client email", before[1].Title)

	require.NoError(t, db.Model(&models.Filing{}).Where("id = ?", s.Filing.ID).Update("fulfilled", true).Error)

	after, err := svc.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "task-"+s.Case.ID.String()+"-"+extra.ID.String(), after[0].ID)
}

func Test_Dispatch_BestEffort(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	rec := &recorder{fail: map[string]bool{"Due in 1 day": true}}
	svc := newService(db, rec)

	admin := newTestApp(svc, uuid.New(), models.RoleAdmin)
	resp, err := admin.Test(httptest.NewRequest("POST", "/api/notifications/dispatch", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out DispatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Published)
	assert.Equal(t, 1, out.Failed)

	msgs := rec.got["agenda"]
	require.Len(t, msgs, 2)
	assert.Equal(t, "critical", msgs[0].Priority)
	assert.Equal(t, []string{"deadline"}, msgs[0].Tags)

	staff := newTestApp(svc, uuid.New(), models.RoleStaff)
	resp, err = staff.Test(httptest.NewRequest("POST", "/api/notifications/dispatch", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func Test_Channel_NamesSharedAndPrivateTopics(t *testing.T) {
	uid := uuid.New()
	app := newTestApp(newService(openTestDB(t), &recorder{}), uid, models.RoleStaff)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/notifications/channel", nil), -1)
	require.NoError(t, err)
	var ch Channel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ch))
	assert.Equal(t, Channel{Topic: "agenda", UserTopic: "agenda-" + uid.String()}, ch)
}

func Test_Debts_ListsOwingClients(t *testing.T) {
	db := openTestDB(t)
	seed(t, db) // Ana's case has no payment status, so it owes
	paid := models.Client{Name: "Beto"}
	require.NoError(t, db.Create(&paid).Error)
	require.NoError(t, db.Create(&models.Case{Category: models.CategoryConsulta, Name: "Advice", ClientID: paid.ID, PaymentStatus: models.PaymentPaid}).Error)

	debts, err := newService(db, &recorder{}).Debts(context.Background())
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, "Ana", debts[0].Client.Name)
	assert.Len(t, debts[0].OwingCases, 1)
}

// A failing store is the only end-to-end failure: it surfaces as a load error.
func Test_FetchFailure_CouldNotLoadNotifications(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM "cases"`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery(`SELECT (.+) FROM "cases"`).WillReturnError(errors.New("connection reset by peer"))

	rec := &recorder{}
	app := newTestApp(newService(db, rec), uuid.New(), models.RoleAdmin)

	for _, path := range []string{"/api/notifications", "/api/notifications/urgent"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		require.Equal(t, 500, resp.StatusCode, path)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "could not load notifications", body.Message)
	}
	assert.Empty(t, rec.got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
