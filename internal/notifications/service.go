// Package notifications loads a snapshot of cases and events from the store,
// runs the agenda aggregations over it and hands the urgent entries to the
// outbound sink. Nothing derived is ever persisted.
package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/legal-desk-backend/internal/agenda"
	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// Snapshot is the full read the aggregations run over.
type Snapshot struct {
	Cases  []models.Case
	Events []models.Event
}

// DispatchResult counts what reached the sink.
type DispatchResult struct {
	Published int                   `json:"published"`
	Failed    int                   `json:"failed"`
	Entries   []agenda.Notification `json:"entries"`
}

// ClientDebt is one client that still owes money.
type ClientDebt struct {
	Client          models.Client `json:"client"`
	OwingCases      []models.Case `json:"owing_cases"`
	UnpaidDebtCents int64         `json:"unpaid_debt_cents"`
}

type Service struct {
	db    *gorm.DB
	pub   notify.Publisher
	topic string
	loc   *time.Location
	log   *slog.Logger

	now func() time.Time
}

func NewService(db *gorm.DB, pub notify.Publisher, topic string, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: db, pub: pub, topic: topic, loc: loc, log: log, now: time.Now}
}

// Topic is the shared channel urgent notifications are published to.
func (s *Service) Topic() string { return s.topic }

// Now is the current instant in the practice's timezone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// Load fetches every case (with its deadlines, filings and tasks) and every event.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.db.WithContext(ctx).
		Preload("Deadlines").Preload("Filings").Preload("Tasks").
		Order("created_at DESC").
		Find(&snap.Cases).Error; err != nil {
		return Snapshot{}, err
	}
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&snap.Events).Error; err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) Urgent(ctx context.Context) ([]agenda.Notification, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return agenda.Urgent(s.Now(), snap.Cases, snap.Events), nil
}

func (s *Service) Pending(ctx context.Context) ([]agenda.Notification, error) {
	var cases []models.Case
	if err := s.db.WithContext(ctx).
		Preload("Filings").Preload("Tasks").
		Order("created_at DESC").
		Find(&cases).Error; err != nil {
		return nil, err
	}
	return agenda.Pending(cases, s.loc), nil
}

// Dispatch publishes every urgent entry to topic (the shared topic when
// empty). Sink failures are counted and logged, never returned.
func (s *Service) Dispatch(ctx context.Context, topic string) (DispatchResult, error) {
	if topic == "" {
		topic = s.topic
	}
	entries, err := s.Urgent(ctx)
	if err != nil {
		return DispatchResult{}, err
	}

	res := DispatchResult{Entries: entries}
	for _, n := range entries {
		err := s.pub.Publish(ctx, topic, notify.Message{
			Title:    n.Title,
			Body:     n.Message,
			Priority: string(n.Priority),
			Tags:     []string{string(n.Kind)},
		})
		if err != nil {
			res.Failed++
			s.log.Warn("publish notification", "id", n.ID, "topic", topic, "error", err)
			continue
		}
		res.Published++
	}
	s.log.Info("notifications dispatched", "topic", topic, "published", res.Published, "failed", res.Failed)
	return res, nil
}

// Debts lists the clients with owing cases or unpaid direct debts, in client list order.
func (s *Service) Debts(ctx context.Context) ([]ClientDebt, error) {
	var clients []models.Client
	if err := s.db.WithContext(ctx).Preload("Debts").Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, err
	}
	var cases []models.Case
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&cases).Error; err != nil {
		return nil, err
	}

	owing := agenda.OwingCases(clients, cases)
	out := make([]ClientDebt, 0)
	for _, cl := range clients {
		if agenda.StatusOf(cl, owing) != agenda.DebtOwes {
			continue
		}
		list := owing[cl.ID]
		if list == nil {
			list = []models.Case{}
		}
		out = append(out, ClientDebt{Client: cl, OwingCases: list, UnpaidDebtCents: agenda.UnpaidDebtCents(cl)})
	}
	return out, nil
}

// UserTopic is the private channel of one user.
func (s *Service) UserTopic(userID uuid.UUID) string {
	return notify.UserTopic(s.topic, userID.String())
}
