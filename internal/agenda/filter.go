package agenda

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aldoetobex/legal-desk-backend/pkg/models"
)

// All is the facet value meaning "no constraint".
const All = "all"

// Facet constrains one categorical field to an exact value.
type Facet[T any] struct {
	Value string
	Field func(T) string
}

func (f Facet[T]) active() bool {
	v := strings.TrimSpace(f.Value)
	return v != "" && !strings.EqualFold(v, All)
}

// Filter combines a free-text search and any number of facets with AND.
// Search matches case-insensitively against any of the fields returned by
// Fields.
type Filter[T any] struct {
	Search string
	Fields func(T) []string
	Facets []Facet[T]
}

// Match reports whether item passes every active predicate.
func (f Filter[T]) Match(item T) bool {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" && f.Fields != nil {
		found := false
		for _, field := range f.Fields(item) {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, facet := range f.Facets {
		if facet.active() && facet.Field(item) != facet.Value {
			return false
		}
	}
	return true
}

// Apply returns the items matching f, preserving order. The input is not modified.
func (f Filter[T]) Apply(items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Clear resets the search text and every facet to its neutral value.
func (f *Filter[T]) Clear() {
	f.Search = ""
	for i := range f.Facets {
		f.Facets[i].Value = All
	}
}

// CaseFilter searches name, docket and client name, with category, status
// and payment facets.
func CaseFilter(search, category, status, payment string) Filter[models.Case] {
	return Filter[models.Case]{
		Search: search,
		Fields: func(c models.Case) []string { return []string{c.Name, c.Docket, c.ClientName} },
		Facets: []Facet[models.Case]{
			{Value: category, Field: func(c models.Case) string { return string(c.Category) }},
			{Value: status, Field: func(c models.Case) string { return c.Status }},
			{Value: payment, Field: func(c models.Case) string { return string(c.PaymentStatus.Normalize()) }},
		},
	}
}

// ClientFilter searches name, email, tax id and phone, with a debt facet
// ("owes" / "current") resolved against owing.
func ClientFilter(search, debt string, owing map[uuid.UUID][]models.Case) Filter[models.Client] {
	return Filter[models.Client]{
		Search: search,
		Fields: func(c models.Client) []string { return []string{c.Name, c.Email, c.TaxID, c.Phone} },
		Facets: []Facet[models.Client]{
			{Value: debt, Field: func(c models.Client) string { return string(StatusOf(c, owing)) }},
		},
	}
}

// EventFilter searches title, description and client name.
func EventFilter(search string) Filter[models.Event] {
	return Filter[models.Event]{
		Search: search,
		Fields: func(e models.Event) []string { return []string{e.Title, e.Description, e.ClientName} },
	}
}
