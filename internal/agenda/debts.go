package agenda

import (
	"github.com/google/uuid"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// OwingCases maps each known client to its cases whose payment status is
// "Debe" (an empty status counts as owing). Cases pointing at a client that
// is not in clients are ignored. Clients with nothing owed are absent.
func OwingCases(clients []models.Client, cases []models.Case) map[uuid.UUID][]models.Case {
	known := make(map[uuid.UUID]struct{}, len(clients))
	for _, cl := range clients {
		known[cl.ID] = struct{}{}
	}

	out := make(map[uuid.UUID][]models.Case)
	for _, cs := range cases {
		if cs.PaymentStatus.Normalize() != models.PaymentOwes {
			continue
		}
		if _, ok := known[cs.ClientID]; !ok {
			continue
		}
		out[cs.ClientID] = append(out[cs.ClientID], cs)
	}
	return out
}

// UnpaidDebtCents sums the client's direct debts that are not paid yet.
func UnpaidDebtCents(cl models.Client) int64 {
	var total int64
	for _, d := range cl.Debts {
		if !d.Paid {
			total += d.AmountCents
		}
	}
	return total
}

// DebtStatus is the client-level debt flag shown in the client list.
type DebtStatus string

const (
	DebtOwes    DebtStatus = "owes"
	DebtCurrent DebtStatus = "current"
)

// StatusOf flags a client as owing when it has owing cases or unpaid direct debts.
func StatusOf(cl models.Client, owing map[uuid.UUID][]models.Case) DebtStatus {
	if len(owing[cl.ID]) > 0 || UnpaidDebtCents(cl) > 0 {
		return DebtOwes
	}
	return DebtCurrent
}
