package agenda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// UrgencyWindow is the last day offset (inclusive) that still notifies.
const UrgencyWindow = 2

// Urgent scans every case deadline and calendar event and returns those due
// today, tomorrow or the day after, ordered by due date. "Today" is local
// midnight of now in now's location. Records with missing or unparsable
// dates are skipped.
func Urgent(now time.Time, cases []models.Case, events []models.Event) []Notification {
	today := Midnight(now)
	loc := now.Location()
	out := make([]Notification, 0)

	for i := range cases {
		cs := &cases[i]
		for _, dl := range cs.Deadlines {
			due, offset, ok := within(dl.Date, today, loc)
			if !ok {
				continue
			}
			caseID := cs.ID
			out = append(out, Notification{
				ID:       notificationID(KindDeadline, cs.ID, dl.ID),
				Kind:     KindDeadline,
				Title:    dueTitle(offset),
				Message:  deadlineMessage(cs, &dl),
				DueDate:  &due,
				DaysLeft: &offset,
				Priority: priorityFor(offset),
				CaseID:   &caseID,
			})
		}
	}

	for i := range events {
		ev := &events[i]
		due, offset, ok := within(ev.Date, today, loc)
		if !ok {
			continue
		}
		out = append(out, Notification{
			ID:       notificationID(KindEvent, ev.ID),
			Kind:     KindEvent,
			Title:    dueTitle(offset),
			Message:  eventMessage(ev),
			DueDate:  &due,
			DaysLeft: &offset,
			Priority: priorityFor(offset),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})
	return out
}

func within(raw string, today time.Time, loc *time.Location) (time.Time, int, bool) {
	if raw == "" {
		return time.Time{}, 0, false
	}
	due, ok := ParseDate(raw, loc)
	if !ok {
		return time.Time{}, 0, false
	}
	offset := DayOffset(today, due)
	if offset < 0 || offset > UrgencyWindow {
		return time.Time{}, 0, false
	}
	return due, offset, true
}

func priorityFor(offset int) Priority {
	if offset == 0 {
		return PriorityCritical
	}
	return PriorityNormal
}

func dueTitle(offset int) string {
	switch offset {
	case 0:
		return "Due TODAY"
	case 1:
		return "Due in 1 day"
	default:
		return fmt.Sprintf("Due in %d days", offset)
	}
}

func deadlineMessage(cs *models.Case, dl *models.Deadline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", cs.Caption())
	fmt.Fprintf(&b, "Docket: %s\n", orDefault(cs.Docket, "No docket"))
	fmt.Fprintf(&b, "Deadline: %s", orDefault(dl.Name, "Unnamed deadline"))
	if d := strings.TrimSpace(dl.Description); d != "" {
		fmt.Fprintf(&b, "\n%s", d)
	}
	return b.String()
}

func eventMessage(ev *models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s", orDefault(ev.Title, "Untitled event"))
	if ev.Time != "" {
		fmt.Fprintf(&b, "\nTime: %s", ev.Time)
	}
	if ev.ClientName != "" {
		fmt.Fprintf(&b, "\nClient: %s", ev.ClientName)
	}
	if d := strings.TrimSpace(ev.Description); d != "" {
		fmt.Fprintf(&b, "\n%s", d)
	}
	return b.String()
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
