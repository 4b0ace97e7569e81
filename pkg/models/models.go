package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Role defines what a staff member may do.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// CaseCategory is the closed set of matter types handled by the practice.
type CaseCategory string

const (
	CategoryJudicial       CaseCategory = "Judicial"
	CategoryART            CaseCategory = "ART"
	CategorySucesion       CaseCategory = "Sucesion"
	CategoryAdministrativo CaseCategory = "Administrativo"
	CategoryConsulta       CaseCategory = "Consulta"
)

// Categories lists every valid CaseCategory in display order.
var Categories = []CaseCategory{
	CategoryJudicial, CategoryART, CategorySucesion, CategoryAdministrativo, CategoryConsulta,
}

// HasProceedings reports whether the category carries the docket / process /
// status / motive / pathology fields.
func (c CaseCategory) HasProceedings() bool {
	return c == CategoryJudicial || c == CategoryART
}

// PaymentStatus is binary: the client either paid the fees or still owes them.
type PaymentStatus string

const (
	PaymentPaid PaymentStatus = "Pagado"
	PaymentOwes PaymentStatus = "Debe"
)

// Normalize maps an absent status to PaymentOwes.
func (p PaymentStatus) Normalize() PaymentStatus {
	if p == PaymentPaid {
		return PaymentPaid
	}
	return PaymentOwes
}

/* =============================== Entities =============================== */

// User is a member of the practice who can sign in.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	Name         string    `json:"name"`
	LinkNonce    string    `json:"-"` // outstanding login link, cleared on use
	CreatedAt    time.Time `json:"created_at"`
}

// Client is a person or company the practice represents.
type Client struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"not null;index" json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email"`
	TaxID      string    `gorm:"index" json:"tax_id"`
	EnrolledAt string    `json:"enrolled_at"`
	CreatedAt  time.Time `json:"created_at"`

	Debts []Debt `gorm:"foreignKey:ClientID" json:"debts,omitempty"`
}

// Debt is a direct obligation of a client that is not tied to a case.
type Debt struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	Concept     string    `gorm:"not null" json:"concept"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"` // stored in cents to avoid float issues
	Date        string    `json:"date"`
	Paid        bool      `gorm:"not null;default:false" json:"paid"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps debts next to the clients table.
func (Debt) TableName() string { return "client_debts" }

// Case is a legal matter handled for one client.
type Case struct {
	ID       uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Category CaseCategory `gorm:"type:varchar(20);not null;index" json:"category"`
	Name     string       `gorm:"not null" json:"name"`
	ClientID uuid.UUID    `gorm:"type:uuid;not null;index" json:"client_id"`
	// ClientName is copied from the client on write and refreshed when the client is renamed.
	ClientName string `json:"client_name"`

	// Proceedings (Judicial and ART only)
	Docket      string `json:"docket,omitempty"`
	ProcessType string `json:"process_type,omitempty"`
	Status      string `json:"status,omitempty"`
	Motive      string `json:"motive,omitempty"`
	Pathology   string `json:"pathology,omitempty"`

	PaymentStatus PaymentStatus `gorm:"type:varchar(10);not null;default:'Debe'" json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`

	// Relations
	Deadlines []Deadline `gorm:"foreignKey:CaseID" json:"deadlines"`
	Filings   []Filing   `gorm:"foreignKey:CaseID" json:"filings"`
	Tasks     []Task     `gorm:"foreignKey:CaseID" json:"tasks"`
	Files     []CaseFile `gorm:"foreignKey:CaseID" json:"files,omitempty"`
}

// Caption is the human label of a case used in notifications.
func (c *Case) Caption() string {
	if c.Name != "" {
		return c.Name
	}
	return "Untitled case"
}

// Deadline is a dated milestone of a case.
type Deadline struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// WorkItem is the shared shape of official filings and internal tasks.
type WorkItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID      uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     string    `json:"due_date,omitempty"`
	Fulfilled   bool      `gorm:"not null;default:false" json:"fulfilled"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filing is an official communication ("oficio") the case is waiting on.
type Filing struct {
	WorkItem
}

// Task is an internal to-do attached to a case.
type Task struct {
	WorkItem
}

// CaseFile represents a document uploaded to a case.
type CaseFile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID       uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Key          string    `gorm:"not null" json:"key"`
	Mime         string    `gorm:"not null" json:"mime"`
	Size         int       `gorm:"not null" json:"size"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`

	// Relation back to case
	Case Case `gorm:"foreignKey:CaseID;references:ID" json:"-"`
}

// Event is a calendar entry, optionally linked to a client.
type Event struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Date        string     `gorm:"index" json:"date"`
	Time        string     `json:"time"`
	ClientID    *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`
	ClientName  string     `json:"client_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// All returns every table managed by AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Client{}, &Debt{}, &Case{}, &Deadline{}, &Filing{}, &Task{}, &CaseFile{}, &Event{},
	}
}

/* ================================ Hooks ================================= */

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error     { newID(&u.ID); return nil }
func (c *Client) BeforeCreate(*gorm.DB) error   { newID(&c.ID); return nil }
func (d *Debt) BeforeCreate(*gorm.DB) error     { newID(&d.ID); return nil }
func (d *Deadline) BeforeCreate(*gorm.DB) error { newID(&d.ID); return nil }
func (w *WorkItem) BeforeCreate(*gorm.DB) error { newID(&w.ID); return nil }
func (f *CaseFile) BeforeCreate(*gorm.DB) error { newID(&f.ID); return nil }
func (e *Event) BeforeCreate(*gorm.DB) error    { newID(&e.ID); return nil }

// BeforeCreate defaults the payment status to "Debe".
func (c *Case) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	c.PaymentStatus = c.PaymentStatus.Normalize()
	return nil
}
