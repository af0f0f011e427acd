package event

import "time"

// SkillWeights holds the ten per-category integer weights assigned to an
// event. The same weights drive both the check-in point award and the
// analysis service's skill summary.
type SkillWeights struct {
	EC int `json:"EC"` // Effective Communication
	LT int `json:"LT"` // Leadership & Team Management
	AP int `json:"AP"` // Analytical & Problem-Solving Abilities
	PR int `json:"PR"` // Professional Networking & Relationship-Building
	AC int `json:"AC"` // Adaptability & Cross-Cultural Collaboration
	CT int `json:"CT"` // Creative & Strategic Thinking
	PM int `json:"PM"` // Project & Time Management
	EI int `json:"EI"` // Emotional Intelligence & Inclusivity
	NP int `json:"NP"` // Negotiation & Persuasion
	SM int `json:"SM"` // Self-Motivation & Initiative
}

// SkillCodes lists the category short codes in catalog order.
var SkillCodes = []string{"EC", "LT", "AP", "PR", "AC", "CT", "PM", "EI", "NP", "SM"}

// SkillNames maps each short code to its full category name.
var SkillNames = map[string]string{
	"EC": "Effective Communication",
	"LT": "Leadership & Team Management",
	"AP": "Analytical & Problem-Solving Abilities",
	"PR": "Professional Networking & Relationship-Building",
	"AC": "Adaptability & Cross-Cultural Collaboration",
	"CT": "Creative & Strategic Thinking",
	"PM": "Project & Time Management",
	"EI": "Emotional Intelligence & Inclusivity",
	"NP": "Negotiation & Persuasion",
	"SM": "Self-Motivation & Initiative",
}

// Total sums every weight; this is the point award for a check-in.
func (w SkillWeights) Total() int {
	return w.EC + w.LT + w.AP + w.PR + w.AC + w.CT + w.PM + w.EI + w.NP + w.SM
}

// ByCode renders the weights keyed by short code.
func (w SkillWeights) ByCode() map[string]int {
	return map[string]int{
		"EC": w.EC, "LT": w.LT, "AP": w.AP, "PR": w.PR, "AC": w.AC,
		"CT": w.CT, "PM": w.PM, "EI": w.EI, "NP": w.NP, "SM": w.SM,
	}
}

// Event is a catalog entry owned by the event service.
type Event struct {
	ID           int64        `json:"eventID"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	ExternalLink string       `json:"externalLink"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	Summary      string       `json:"summary"`
	Description  string       `json:"description"`
	Tag          string       `json:"tag"`
	Organizer    string       `json:"organizer"`
	ImageURL     string       `json:"image,omitempty"`
	Skills       SkillWeights `json:"skillPoints"`
}

// Update carries the partial-update fields for an event. Nil pointers
// leave the stored value untouched; a non-nil empty ImageURL clears the
// stored image reference.
type Update struct {
	Name         *string
	Location     *string
	ExternalLink *string
	StartTime    *time.Time
	EndTime      *time.Time
	Summary      *string
	Description  *string
	Tag          *string
	Organizer    *string
	ImageURL     *string
	Skills       *SkillWeights
}

// Ticket is one (student, event) attendance record.
type Ticket struct {
	TicketID  string    `json:"ticketID"`
	StudentID string    `json:"studentID"`
	EventID   int64     `json:"eventID"`
	CheckedIn bool      `json:"checkedIn"`
	CreatedAt time.Time `json:"createdAt"`
}

// StudentEvent is an event enriched with the student's attendance state,
// as returned by the per-student listing and the event-history endpoint.
type StudentEvent struct {
	Event
	TicketID  string `json:"ticketID"`
	CheckedIn bool   `json:"checkedIn"`
}

// ListFilter selects events relative to the current time.
type ListFilter string

const (
	FilterAll      ListFilter = "all"
	FilterCurrent  ListFilter = "current"
	FilterPrevious ListFilter = "previous"
	FilterUpcoming ListFilter = "upcoming"
)

// Valid reports whether f is a recognized filter.
func (f ListFilter) Valid() bool {
	switch f {
	case FilterAll, FilterCurrent, FilterPrevious, FilterUpcoming:
		return true
	}
	return false
}

// PageSize is the fixed page length for event listings.
const PageSize = 10

// Page wraps one page of results with navigation totals.
type Page[T any] struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
	Items      []T `json:"items"`
}

// TotalPages computes the page count for a result set.
func TotalPages(totalCount int) int {
	return (totalCount + PageSize - 1) / PageSize
}
