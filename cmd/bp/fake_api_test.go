package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bloomplan/internal/client"
	"github.com/and161185/bloomplan/internal/config"
	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/pricing"
	"github.com/and161185/bloomplan/internal/schedule"
)

// fakeAPI is an in-memory plan service shared by every run of a test.
type fakeAPI struct {
	mu        sync.Mutex
	token     client.TokenSource
	users     map[string]string
	userIDs   map[string]uuid.UUID
	issued    map[string]string // token -> username
	plans     map[uuid.UUID]*model.Plan
	order     []uuid.UUID
	loggedOut int
	closed    int
	dials     int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:   map[string]string{},
		userIDs: map[string]uuid.UUID{},
		issued:  map[string]string{},
		plans:   map[uuid.UUID]*model.Plan{},
	}
}

func (f *fakeAPI) dial(_ config.ClientConfig, token client.TokenSource, _ *zap.Logger) (API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.dials++
	return f, nil
}

func clonePlan(p *model.Plan) *model.Plan {
	cp := *p
	cp.DraftCardMessages = maps.Clone(p.DraftCardMessages)
	cp.Events = slices.Clone(p.Events)
	return &cp
}

// caller returns the signed-in username; f.mu must be held.
func (f *fakeAPI) caller() (string, error) {
	if f.token == nil {
		return "", errs.ErrUnauthorized
	}
	name, ok := f.issued[f.token()]
	if !ok {
		return "", errs.ErrUnauthorized
	}
	return name, nil
}

func (f *fakeAPI) plan(id uuid.UUID) (*model.Plan, error) {
	if _, err := f.caller(); err != nil {
		return nil, err
	}
	p, ok := f.plans[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return p, nil
}

func (f *fakeAPI) Ping(context.Context) error { return nil }

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeAPI) Register(_ context.Context, username, password string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return uuid.Nil, errs.ErrAlreadyExists
	}
	id := uuid.Must(uuid.NewV4())
	f.users[username] = password
	f.userIDs[username] = id
	return id, nil
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (model.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[username]; !ok || pw != password {
		return model.Tokens{}, errs.ErrUnauthorized
	}
	tok := fmt.Sprintf("tok-%s-%d", username, len(f.issued))
	f.issued[tok] = username
	return model.Tokens{AccessToken: tok, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token != nil {
		delete(f.issued, f.token())
	}
	f.loggedOut++
	return nil
}

func (f *fakeAPI) Profile(context.Context) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, err := f.caller()
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{UserID: f.userIDs[name], Username: name, CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAPI) CreatePlan(_ context.Context, s model.Structure, r model.Recipient) (*model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, err := f.caller()
	if err != nil {
		return nil, err
	}
	p := &model.Plan{
		ID:                uuid.Must(uuid.NewV4()),
		UserID:            f.userIDs[name],
		Status:            model.StatusDraft,
		Structure:         s,
		Recipient:         r,
		DraftCardMessages: map[string]string{},
	}
	f.plans[p.ID] = p
	f.order = append(f.order, p.ID)
	return clonePlan(p), nil
}

func (f *fakeAPI) ListPlans(context.Context) ([]model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.caller(); err != nil {
		return nil, err
	}
	out := make([]model.Plan, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *clonePlan(f.plans[id]))
	}
	return out, nil
}

func (f *fakeAPI) GetPlan(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.plan(id)
	if err != nil {
		return nil, err
	}
	return clonePlan(p), nil
}

func (f *fakeAPI) GetProjectedDeliveries(_ context.Context, id uuid.UUID) ([]model.ProjectedDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.plan(id)
	if err != nil {
		return nil, err
	}
	return schedule.ForStructure(p.Structure), nil
}

func (f *fakeAPI) UpdatePlan(_ context.Context, id uuid.UUID, patch model.PlanPatch) (*model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.plan(id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusDraft && (patch.TouchesStructure() || patch.DraftCardMessages != nil) {
		return nil, errs.ErrPlanActive
	}
	if patch.Frequency != nil {
		p.Structure.Frequency = *patch.Frequency
	}
	if patch.StartDate != nil {
		p.Structure.StartDate = *patch.StartDate
	}
	if patch.Years != nil {
		p.Structure.Years = *patch.Years
	}
	if patch.Budget != nil {
		p.Structure.Budget = *patch.Budget
	}
	if patch.Recipient != nil {
		p.Recipient = *patch.Recipient
	}
	if patch.DraftCardMessages != nil {
		p.DraftCardMessages = maps.Clone(patch.DraftCardMessages)
	}
	return clonePlan(p), nil
}

func (f *fakeAPI) UpdateEvent(_ context.Context, eventID uuid.UUID, message string) (model.DeliveryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.caller(); err != nil {
		return model.DeliveryEvent{}, err
	}
	for _, p := range f.plans {
		for i := range p.Events {
			if p.Events[i].ID == eventID {
				m := message
				p.Events[i].Message = &m
				return p.Events[i], nil
			}
		}
	}
	return model.DeliveryEvent{}, errs.ErrNotFound
}

func (f *fakeAPI) CalculatePrice(_ context.Context, req model.PriceRequest) (model.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Structure != nil {
		return pricing.Quote(*req.Structure)
	}
	p, err := f.plan(req.PlanID)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return pricing.Quote(p.Structure)
}

func (f *fakeAPI) ActivatePlan(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.plan(id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.StatusDraft {
		return nil, errs.ErrPlanActive
	}
	if err := p.Recipient.Validate(); err != nil {
		return nil, err
	}
	for _, d := range schedule.ForStructure(p.Structure) {
		ev := model.DeliveryEvent{ID: uuid.Must(uuid.NewV4()), PlanID: p.ID, Index: d.Index, DeliveryDate: d.Date}
		if m := p.DraftCardMessages[model.DraftKey(d.Index)]; m != "" {
			ev.Message = &m
		}
		p.Events = append(p.Events, ev)
	}
	p.Status = model.StatusActive
	p.DraftCardMessages = nil
	return clonePlan(p), nil
}
