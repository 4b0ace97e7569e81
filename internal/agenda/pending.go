package agenda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// Pending lists every unfulfilled filing and task across all cases, sorted
// by title. Due dates are informational only and never filter. loc is used
// to read due dates for display.
func Pending(cases []models.Case, loc *time.Location) []Notification {
	out := make([]Notification, 0)
	for i := range cases {
		cs := &cases[i]
		for _, f := range cs.Filings {
			if f.Fulfilled {
				continue
			}
			out = append(out, pendingEntry(KindFiling, cs, &f.WorkItem, loc))
		}
		for _, t := range cs.Tasks {
			if t.Fulfilled {
				continue
			}
			out = append(out, pendingEntry(KindTask, cs, &t.WorkItem, loc))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func pendingEntry(kind Kind, cs *models.Case, it *models.WorkItem, loc *time.Location) Notification {
	label := "Filing"
	if kind == KindTask {
		label = "Task"
	}
	title := orDefault(it.Title, "Untitled")

	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", cs.Caption())
	fmt.Fprintf(&b, "Docket: %s\n", orDefault(cs.Docket, "No docket"))
	fmt.Fprintf(&b, "%s: %s", label, title)

	n := Notification{
		ID:       notificationID(kind, cs.ID, it.ID),
		Kind:     kind,
		Title:    fmt.Sprintf("Pending %s: %s", strings.ToLower(label), title),
		Priority: PriorityNormal,
	}
	if due, ok := ParseDate(it.DueDate, loc); ok {
		fmt.Fprintf(&b, "\nDue: %s", FormatDate(due))
		n.DueDate = &due
	}
	if d := strings.TrimSpace(it.Description); d != "" {
		fmt.Fprintf(&b, "\n%s", d)
	}
	n.Message = b.String()

	caseID := cs.ID
	n.CaseID = &caseID
	return n
}
