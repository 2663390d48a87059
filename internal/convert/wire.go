// Package convert maps domain models to planwire messages and back.
package convert

import (
	"fmt"
	"maps"

	u "github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bloomplan/internal/model"
	wire "github.com/and161185/bloomplan/internal/planwire"
)

// --- helpers ---

func parseID(field, s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return id, nil
}

// ParseID parses a UUID field of a request.
func ParseID(field, s string) (u.UUID, error) { return parseID(field, s) }

func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

func idString(id u.UUID) string {
	if id == u.Nil {
		return ""
	}
	return id.String()
}

// --- Structure / Recipient ---

// ToWireStructure converts plan structure to its wire form.
func ToWireStructure(s model.Structure) wire.Structure {
	return wire.Structure{
		Frequency: string(s.Frequency),
		StartDate: model.FormatDate(s.StartDate),
		Years:     int32(s.Years),
		Budget:    s.Budget.StringFixed(2),
	}
}

// FromWireStructure parses a wire structure.
func FromWireStructure(in wire.Structure) (model.Structure, error) {
	var s model.Structure
	s.Frequency = model.Frequency(in.Frequency)
	s.Years = int(in.Years)
	if in.StartDate != "" {
		d, err := model.ParseDate(in.StartDate)
		if err != nil {
			return model.Structure{}, fmt.Errorf("start_date: %w", err)
		}
		s.StartDate = d
	}
	b, err := parseAmount("budget", in.Budget)
	if err != nil {
		return model.Structure{}, err
	}
	s.Budget = b
	return s, nil
}

// ToWireRecipient converts a recipient; the zero recipient becomes nil.
func ToWireRecipient(r model.Recipient) *wire.Recipient {
	if r == (model.Recipient{}) {
		return nil
	}
	w := wire.Recipient(r)
	return &w
}

// FromWireRecipient converts a wire recipient; nil gives the zero recipient.
func FromWireRecipient(r *wire.Recipient) model.Recipient {
	if r == nil {
		return model.Recipient{}
	}
	return model.Recipient(*r)
}

// --- Plan / events (server -> client) ---

// ToWireEvent converts a delivery event.
func ToWireEvent(e model.DeliveryEvent) *wire.DeliveryEvent {
	return &wire.DeliveryEvent{
		ID:           e.ID.String(),
		PlanID:       e.PlanID.String(),
		Index:        int32(e.Index),
		DeliveryDate: model.FormatDate(e.DeliveryDate),
		Message:      e.Message,
	}
}

// FromWireEvent parses a delivery event.
func FromWireEvent(in *wire.DeliveryEvent) (model.DeliveryEvent, error) {
	if in == nil {
		return model.DeliveryEvent{}, fmt.Errorf("nil DeliveryEvent")
	}
	id, err := parseID("event id", in.ID)
	if err != nil {
		return model.DeliveryEvent{}, err
	}
	planID, err := parseID("plan id", in.PlanID)
	if err != nil {
		return model.DeliveryEvent{}, err
	}
	d, err := model.ParseDate(in.DeliveryDate)
	if err != nil {
		return model.DeliveryEvent{}, fmt.Errorf("delivery_date: %w", err)
	}
	return model.DeliveryEvent{ID: id, PlanID: planID, Index: int(in.Index), DeliveryDate: d, Message: in.Message}, nil
}

// ToWirePlan converts a plan with its events.
func ToWirePlan(p model.Plan) *wire.Plan {
	out := &wire.Plan{
		ID:                p.ID.String(),
		Status:            string(p.Status),
		Structure:         ToWireStructure(p.Structure),
		Recipient:         ToWireRecipient(p.Recipient),
		DraftCardMessages: maps.Clone(p.DraftCardMessages),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	for _, e := range p.Events {
		out.Events = append(out.Events, ToWireEvent(e))
	}
	return out
}

// FromWirePlan parses a plan with its events.
func FromWirePlan(in *wire.Plan) (*model.Plan, error) {
	if in == nil {
		return nil, fmt.Errorf("nil Plan")
	}
	id, err := parseID("plan id", in.ID)
	if err != nil {
		return nil, err
	}
	s, err := FromWireStructure(in.Structure)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{
		ID:                id,
		Status:            model.PlanStatus(in.Status),
		Structure:         s,
		Recipient:         FromWireRecipient(in.Recipient),
		DraftCardMessages: maps.Clone(in.DraftCardMessages),
		CreatedAt:         in.CreatedAt,
		UpdatedAt:         in.UpdatedAt,
	}
	if p.DraftCardMessages == nil {
		p.DraftCardMessages = map[string]string{}
	}
	for i, e := range in.Events {
		ev, err := FromWireEvent(e)
		if err != nil {
			return nil, fmt.Errorf("event[%d]: %w", i, err)
		}
		p.Events = append(p.Events, ev)
	}
	return p, nil
}

// --- Projection ---

// ToWireProjected converts projected deliveries.
func ToWireProjected(ds []model.ProjectedDelivery) []*wire.ProjectedDelivery {
	out := make([]*wire.ProjectedDelivery, 0, len(ds))
	for _, d := range ds {
		out = append(out, &wire.ProjectedDelivery{Index: int32(d.Index), Date: model.FormatDate(d.Date)})
	}
	return out
}

// FromWireProjected parses projected deliveries.
func FromWireProjected(in []*wire.ProjectedDelivery) ([]model.ProjectedDelivery, error) {
	out := make([]model.ProjectedDelivery, 0, len(in))
	for i, d := range in {
		if d == nil {
			return nil, fmt.Errorf("delivery[%d]: nil", i)
		}
		date, err := model.ParseDate(d.Date)
		if err != nil {
			return nil, fmt.Errorf("delivery[%d]: %w", i, err)
		}
		out = append(out, model.ProjectedDelivery{Index: int(d.Index), Date: date})
	}
	return out, nil
}

// --- Patch (client -> server) ---

// ToWirePatch converts a partial update of planID.
func ToWirePatch(planID u.UUID, p model.PlanPatch) *wire.UpdatePlanRequest {
	req := &wire.UpdatePlanRequest{PlanID: planID.String(), DraftCardMessages: maps.Clone(p.DraftCardMessages)}
	if p.Frequency != nil {
		f := string(*p.Frequency)
		req.Frequency = &f
	}
	if p.StartDate != nil {
		d := model.FormatDate(*p.StartDate)
		req.StartDate = &d
	}
	if p.Years != nil {
		y := int32(*p.Years)
		req.Years = &y
	}
	if p.Budget != nil {
		b := p.Budget.StringFixed(2)
		req.Budget = &b
	}
	if p.Recipient != nil {
		r := wire.Recipient(*p.Recipient)
		req.Recipient = &r
	}
	return req
}

// FromWirePatch parses a partial update request.
func FromWirePatch(in *wire.UpdatePlanRequest) (u.UUID, model.PlanPatch, error) {
	if in == nil {
		return u.Nil, model.PlanPatch{}, fmt.Errorf("nil UpdatePlanRequest")
	}
	id, err := parseID("plan id", in.PlanID)
	if err != nil {
		return u.Nil, model.PlanPatch{}, err
	}
	p := model.PlanPatch{DraftCardMessages: maps.Clone(in.DraftCardMessages)}
	if in.Frequency != nil {
		f := model.Frequency(*in.Frequency)
		p.Frequency = &f
	}
	if in.StartDate != nil {
		d, err := model.ParseDate(*in.StartDate)
		if err != nil {
			return u.Nil, model.PlanPatch{}, fmt.Errorf("start_date: %w", err)
		}
		p.StartDate = &d
	}
	if in.Years != nil {
		y := int(*in.Years)
		p.Years = &y
	}
	if in.Budget != nil {
		b, err := parseAmount("budget", *in.Budget)
		if err != nil {
			return u.Nil, model.PlanPatch{}, err
		}
		p.Budget = &b
	}
	if in.Recipient != nil {
		r := model.Recipient(*in.Recipient)
		p.Recipient = &r
	}
	return id, p, nil
}

// --- Pricing ---

// ToWirePriceRequest converts a quote request.
func ToWirePriceRequest(r model.PriceRequest) *wire.CalculatePriceRequest {
	out := &wire.CalculatePriceRequest{PlanID: idString(r.PlanID)}
	if r.Structure != nil {
		s := ToWireStructure(*r.Structure)
		out.Structure = &s
	}
	return out
}

// FromWirePriceRequest parses a quote request; it needs a plan id or a structure.
func FromWirePriceRequest(in *wire.CalculatePriceRequest) (model.PriceRequest, error) {
	if in == nil {
		return model.PriceRequest{}, fmt.Errorf("nil CalculatePriceRequest")
	}
	var r model.PriceRequest
	if in.PlanID != "" {
		id, err := parseID("plan id", in.PlanID)
		if err != nil {
			return model.PriceRequest{}, err
		}
		r.PlanID = id
	}
	if in.Structure != nil {
		s, err := FromWireStructure(*in.Structure)
		if err != nil {
			return model.PriceRequest{}, err
		}
		r.Structure = &s
	}
	if r.PlanID == u.Nil && r.Structure == nil {
		return model.PriceRequest{}, fmt.Errorf("need plan id or structure")
	}
	return r, nil
}

// ToWireQuote converts a price quote.
func ToWireQuote(q model.PriceQuote) *wire.PriceQuote {
	return &wire.PriceQuote{Amount: q.Amount.StringFixed(2), Breakdown: maps.Clone(q.Breakdown)}
}

// FromWireQuote parses a price quote.
func FromWireQuote(in *wire.PriceQuote) (model.PriceQuote, error) {
	if in == nil {
		return model.PriceQuote{}, fmt.Errorf("nil PriceQuote")
	}
	amt, err := parseAmount("amount", in.Amount)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return model.PriceQuote{Amount: amt, Breakdown: maps.Clone(in.Breakdown)}, nil
}

// --- Profile ---

// ToWireProfile converts a profile.
func ToWireProfile(p model.Profile) *wire.Profile {
	return &wire.Profile{UserID: p.UserID.String(), Username: p.Username, CreatedAt: p.CreatedAt}
}

// FromWireProfile parses a profile.
func FromWireProfile(in *wire.Profile) (model.Profile, error) {
	if in == nil {
		return model.Profile{}, fmt.Errorf("nil Profile")
	}
	id, err := parseID("user id", in.UserID)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{UserID: id, Username: in.Username, CreatedAt: in.CreatedAt}, nil
}
