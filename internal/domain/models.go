package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxDocumentSize bounds each uploaded document reference.
const MaxDocumentSize = 10 * 1024 * 1024

type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ServiceDefinition struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Requirements   string          `json:"requirements"`
	ProcessingTime string          `json:"processing_time"`
	Fee            decimal.Decimal `json:"fee"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Document is an opaque reference produced by the upload collaborator.
type Document struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type Application struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	ServiceID    string     `json:"service_id"`
	Status       Status     `json:"status"`
	Description  string     `json:"description"`
	Documents    []Document `json:"documents"`
	StaffRemarks string     `json:"staff_remarks,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusChangeEvent is written exactly once per committed transition.
type StatusChangeEvent struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	ChangedBy     ActorRef  `json:"changed_by"`
	OldStatus     Status    `json:"old_status"`
	NewStatus     Status    `json:"new_status"`
	Timestamp     time.Time `json:"timestamp"`
	Remarks       string    `json:"remarks,omitempty"`
}

// ApplicationFilter narrows listAll; zero values match everything.
type ApplicationFilter struct {
	Status Status
	UserID string
	Limit  int
}

func (f ApplicationFilter) Matches(app Application) bool {
	if f.Status != "" && app.Status != f.Status {
		return false
	}
	if f.UserID != "" && app.UserID != f.UserID {
		return false
	}
	return true
}

// Scope is the subset of applications a caller may see or aggregate.
type Scope struct {
	OwnerID string
}

func GlobalScope() Scope { return Scope{} }

func OwnedBy(userID string) Scope { return Scope{OwnerID: userID} }

func (s Scope) Global() bool { return s.OwnerID == "" }

func (s Scope) Key() string {
	if s.Global() {
		return "global"
	}
	return "owner:" + s.OwnerID
}

type Stats struct {
	Scope    string         `json:"scope"`
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

func NewStats(scope Scope) Stats {
	byStatus := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		byStatus[s] = 0
	}
	return Stats{Scope: scope.Key(), ByStatus: byStatus}
}

func (s *Stats) Add(status Status) {
	s.Total++
	s.ByStatus[status]++
}

type Overview struct {
	Applications  Stats `json:"applications"`
	TotalAccounts int   `json:"total_accounts"`
	Personnel     int   `json:"personnel"`
	TotalServices int   `json:"total_services"`
}
