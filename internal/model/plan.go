package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Frequency is the delivery cadence of a plan.
type Frequency string

// Supported cadences. Any other value schedules one delivery a year.
const (
	Weekly      Frequency = "weekly"
	Fortnightly Frequency = "fortnightly"
	Monthly     Frequency = "monthly"
	Quarterly   Frequency = "quarterly"
	BiAnnually  Frequency = "bi-annually"
	Annually    Frequency = "annually"
)

// Frequencies lists the known cadences, most frequent first.
var Frequencies = []Frequency{Weekly, Fortnightly, Monthly, Quarterly, BiAnnually, Annually}

// Known reports whether f is one of the supported cadences.
func (f Frequency) Known() bool {
	for _, k := range Frequencies {
		if f == k {
			return true
		}
	}
	return false
}

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	// StatusDraft plans have no events yet; the schedule is projected.
	StatusDraft PlanStatus = "draft"
	// StatusActive plans are paid and carry materialized events.
	StatusActive PlanStatus = "active"
	// StatusCancelled plans are no longer delivered.
	StatusCancelled PlanStatus = "cancelled"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar date; zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DraftKey is the draft_card_messages key of the projected delivery at index.
func DraftKey(index int) string { return strconv.Itoa(index) }

// Structure holds the scheduling and budget parameters of a plan.
type Structure struct {
	Frequency Frequency
	StartDate time.Time // calendar date
	Years     int       // >= 1
	Budget    decimal.Decimal
}

// Recipient is who receives the deliveries.
type Recipient struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	AddressLine  string `json:"address_line"`
	Suburb       string `json:"suburb"`
	Postcode     string `json:"postcode"`
	Instructions string `json:"instructions,omitempty"`
}

// Plan is a customer's recurring delivery arrangement.
// Events is populated only once the plan has been paid and activated.
type Plan struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Status            PlanStatus
	Structure         Structure
	Recipient         Recipient
	DraftCardMessages map[string]string // projected index -> message, pre-payment only
	Events            []DeliveryEvent
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasEvents reports whether persisted events are authoritative for this plan.
func (p *Plan) HasEvents() bool { return p != nil && len(p.Events) > 0 }

// DeliveryEvent is a single server-confirmed delivery of an active plan.
type DeliveryEvent struct {
	ID           uuid.UUID
	PlanID       uuid.UUID
	Index        int
	DeliveryDate time.Time
	Message      *string
}

// MessageText returns the event message or "" when unset.
func (e DeliveryEvent) MessageText() string {
	if e.Message == nil {
		return ""
	}
	return *e.Message
}

// ProjectedDelivery is a hypothetical delivery slot computed before activation.
type ProjectedDelivery struct {
	Index int
	Date  time.Time
}

// PlanPatch is a partial plan update; nil fields are left untouched.
type PlanPatch struct {
	Frequency         *Frequency
	StartDate         *time.Time
	Years             *int
	Budget            *decimal.Decimal
	Recipient         *Recipient
	DraftCardMessages map[string]string
}

// StructurePatch builds a patch that rewrites all structure fields.
func StructurePatch(s Structure) PlanPatch {
	f, d, y, b := s.Frequency, s.StartDate, s.Years, s.Budget
	return PlanPatch{Frequency: &f, StartDate: &d, Years: &y, Budget: &b}
}

// TouchesStructure reports whether the patch changes scheduling or budget.
func (p PlanPatch) TouchesStructure() bool {
	return p.Frequency != nil || p.StartDate != nil || p.Years != nil || p.Budget != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p PlanPatch) IsEmpty() bool {
	return !p.TouchesStructure() && p.Recipient == nil && p.DraftCardMessages == nil
}

// PriceRequest asks for a quote of a stored plan or of a hypothetical structure.
// When Structure is set it takes precedence over the stored plan's structure.
type PriceRequest struct {
	PlanID    uuid.UUID
	Structure *Structure
}

// PriceQuote is a computed price; Breakdown is opaque display data.
type PriceQuote struct {
	Amount    decimal.Decimal
	Breakdown map[string]string
}

// Equal reports whether two structures describe the same schedule and budget.
func (s Structure) Equal(o Structure) bool {
	return s.Frequency == o.Frequency && s.StartDate.Equal(o.StartDate) &&
		s.Years == o.Years && s.Budget.Equal(o.Budget)
}
