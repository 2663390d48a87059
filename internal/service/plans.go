package service

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/pricing"
	"github.com/and161185/bloomplan/internal/repository"
	"github.com/and161185/bloomplan/internal/schedule"
)

// MaxMessageLen bounds a single card message, in runes.
const MaxMessageLen = 500

// PlanService defines operations over a user's plans.
type PlanService interface {
	// Create stores a new draft plan.
	Create(ctx context.Context, userID uuid.UUID, s model.Structure, r model.Recipient) (*model.Plan, error)
	// List returns the user's plans, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Plan, error)
	// Get returns a plan with its events.
	Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error)
	// Update applies a partial update.
	Update(ctx context.Context, userID, planID uuid.UUID, p model.PlanPatch) (*model.Plan, error)
	// UpdateEvent sets the card message of one delivery event.
	UpdateEvent(ctx context.Context, userID, eventID uuid.UUID, message string) (model.DeliveryEvent, error)
	// Projected computes the delivery slots of the plan's current structure.
	Projected(ctx context.Context, userID, planID uuid.UUID) ([]model.ProjectedDelivery, error)
	// Quote prices a stored plan or a hypothetical structure.
	Quote(ctx context.Context, userID uuid.UUID, req model.PriceRequest) (model.PriceQuote, error)
	// Activate materializes delivery events once the plan is paid for.
	Activate(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error)
}

type PlanServiceImpl struct {
	repo repository.PlanRepository
}

// NewPlanService constructs PlanService over a repository.
func NewPlanService(repo repository.PlanRepository) *PlanServiceImpl {
	return &PlanServiceImpl{repo: repo}
}

func validateMessage(m string) error {
	if utf8.RuneCountInString(m) > MaxMessageLen {
		return fmt.Errorf("%w: message longer than %d characters", errs.ErrValidation, MaxMessageLen)
	}
	return nil
}

func validateDrafts(drafts map[string]string) error {
	for k, m := range drafts {
		if i, err := strconv.Atoi(k); err != nil || i < 0 {
			return fmt.Errorf("%w: bad draft key %q", errs.ErrValidation, k)
		}
		if err := validateMessage(m); err != nil {
			return fmt.Errorf("draft %s: %w", k, err)
		}
	}
	return nil
}

// Create validates and stores a draft plan. A zero recipient may be filled in later.
func (s *PlanServiceImpl) Create(ctx context.Context, userID uuid.UUID, st model.Structure, r model.Recipient) (*model.Plan, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if r != (model.Recipient{}) {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	p := &model.Plan{
		ID:                id,
		UserID:            userID,
		Status:            model.StatusDraft,
		Structure:         st,
		Recipient:         r,
		DraftCardMessages: map[string]string{},
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlanServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Plan, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	return s.repo.List(ctx, userID)
}

func (s *PlanServiceImpl) Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	if userID == uuid.Nil || planID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID/planID", errs.ErrValidation)
	}
	return s.repo.Get(ctx, userID, planID)
}

// Update validates the patch against the current plan. Structure and draft
// messages are frozen once the plan is active; the recipient is not.
func (s *PlanServiceImpl) Update(ctx context.Context, userID, planID uuid.UUID, p model.PlanPatch) (*model.Plan, error) {
	cur, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if p.IsEmpty() {
		return cur, nil
	}
	if cur.Status != model.StatusDraft && (p.TouchesStructure() || p.DraftCardMessages != nil) {
		return nil, errs.ErrPlanActive
	}
	if p.TouchesStructure() {
		if err := merged(cur.Structure, p).Validate(); err != nil {
			return nil, err
		}
	}
	if p.Recipient != nil {
		if err := p.Recipient.Validate(); err != nil {
			return nil, err
		}
	}
	if err := validateDrafts(p.DraftCardMessages); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, userID, planID, p)
}

func merged(st model.Structure, p model.PlanPatch) model.Structure {
	if p.Frequency != nil {
		st.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		st.StartDate = model.DateOf(*p.StartDate)
	}
	if p.Years != nil {
		st.Years = *p.Years
	}
	if p.Budget != nil {
		st.Budget = *p.Budget
	}
	return st
}

func (s *PlanServiceImpl) UpdateEvent(ctx context.Context, userID, eventID uuid.UUID, message string) (model.DeliveryEvent, error) {
	if userID == uuid.Nil || eventID == uuid.Nil {
		return model.DeliveryEvent{}, fmt.Errorf("%w: empty userID/eventID", errs.ErrValidation)
	}
	if err := validateMessage(message); err != nil {
		return model.DeliveryEvent{}, err
	}
	return s.repo.UpdateEventMessage(ctx, userID, eventID, message)
}

func (s *PlanServiceImpl) Projected(ctx context.Context, userID, planID uuid.UUID) ([]model.ProjectedDelivery, error) {
	p, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return schedule.ForStructure(p.Structure), nil
}

// Quote prices req.Structure when set, otherwise the stored plan.
func (s *PlanServiceImpl) Quote(ctx context.Context, userID uuid.UUID, req model.PriceRequest) (model.PriceQuote, error) {
	if req.Structure != nil {
		return pricing.Quote(*req.Structure)
	}
	p, err := s.Get(ctx, userID, req.PlanID)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return pricing.Quote(p.Structure)
}

// Activate turns the projection into delivery events. Draft message N becomes
// the message of event N; empty drafts leave the event message unset.
func (s *PlanServiceImpl) Activate(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	p, err := s.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusDraft {
		return nil, errs.ErrPlanActive
	}
	if err := p.Recipient.Validate(); err != nil {
		return nil, err
	}
	projected := schedule.ForStructure(p.Structure)
	events := make([]model.DeliveryEvent, 0, len(projected))
	for _, d := range projected {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		ev := model.DeliveryEvent{ID: id, PlanID: p.ID, Index: d.Index, DeliveryDate: d.Date}
		if m := p.DraftCardMessages[model.DraftKey(d.Index)]; m != "" {
			ev.Message = &m
		}
		events = append(events, ev)
	}
	return s.repo.Activate(ctx, userID, planID, events)
}
