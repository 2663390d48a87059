package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/repository"
)

type fakePlanRepo struct {
	plan   *model.Plan
	getErr error

	createIn  *model.Plan
	createErr error

	updInPlan  uuid.UUID
	updInPatch *model.PlanPatch
	updErr     error

	actInEvents []model.DeliveryEvent
	actErr      error

	evInID  uuid.UUID
	evInMsg string
	evErr   error

	listInUser uuid.UUID
}

var _ repository.PlanRepository = (*fakePlanRepo)(nil)

func (f *fakePlanRepo) Create(_ context.Context, p *model.Plan) error {
	f.createIn = p
	return f.createErr
}
func (f *fakePlanRepo) List(_ context.Context, userID uuid.UUID) ([]model.Plan, error) {
	f.listInUser = userID
	if f.plan == nil {
		return nil, nil
	}
	return []model.Plan{*f.plan}, nil
}
func (f *fakePlanRepo) Get(_ context.Context, _, planID uuid.UUID) (*model.Plan, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.plan == nil || f.plan.ID != planID {
		return nil, errs.ErrNotFound
	}
	c := *f.plan
	return &c, nil
}
func (f *fakePlanRepo) Update(_ context.Context, _, planID uuid.UUID, p model.PlanPatch) (*model.Plan, error) {
	f.updInPlan, f.updInPatch = planID, &p
	if f.updErr != nil {
		return nil, f.updErr
	}
	c := *f.plan
	return &c, nil
}
func (f *fakePlanRepo) Activate(_ context.Context, _, _ uuid.UUID, events []model.DeliveryEvent) (*model.Plan, error) {
	f.actInEvents = append([]model.DeliveryEvent(nil), events...)
	if f.actErr != nil {
		return nil, f.actErr
	}
	c := *f.plan
	c.Status = model.StatusActive
	c.Events = f.actInEvents
	return &c, nil
}
func (f *fakePlanRepo) UpdateEventMessage(_ context.Context, _, eventID uuid.UUID, msg string) (model.DeliveryEvent, error) {
	f.evInID, f.evInMsg = eventID, msg
	if f.evErr != nil {
		return model.DeliveryEvent{}, f.evErr
	}
	return model.DeliveryEvent{ID: eventID, Message: &msg}, nil
}

func testStructure() model.Structure {
	return model.Structure{
		Frequency: model.Quarterly,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Years:     1,
		Budget:    decimal.NewFromInt(75),
	}
}

func testRecipient() model.Recipient {
	return model.Recipient{Name: "Ann", AddressLine: "1 Main St", Suburb: "Carlton", Postcode: "3053"}
}

func draftPlan(user uuid.UUID) *model.Plan {
	return &model.Plan{
		ID:                uuid.Must(uuid.NewV4()),
		UserID:            user,
		Status:            model.StatusDraft,
		Structure:         testStructure(),
		Recipient:         testRecipient(),
		DraftCardMessages: map[string]string{},
	}
}

func TestPlanService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakePlanRepo{}
	s := NewPlanService(repo)
	user := uuid.Must(uuid.NewV4())

	_, err := s.Create(ctx, uuid.Nil, testStructure(), model.Recipient{})
	require.ErrorIs(t, err, errs.ErrValidation)

	bad := testStructure()
	bad.Years = 0
	_, err = s.Create(ctx, user, bad, model.Recipient{})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, user, testStructure(), model.Recipient{Name: "x"})
	require.ErrorIs(t, err, errs.ErrValidation, "partial recipient is validated")

	p, err := s.Create(ctx, user, testStructure(), model.Recipient{})
	require.NoError(t, err)
	require.Equal(t, model.StatusDraft, p.Status)
	require.Equal(t, user, repo.createIn.UserID)
	require.NotEqual(t, uuid.Nil, repo.createIn.ID)
	require.NotNil(t, repo.createIn.DraftCardMessages)

	repo.createErr = errors.New("boom")
	_, err = s.Create(ctx, user, testStructure(), model.Recipient{})
	require.Error(t, err)
}

func TestPlanService_ListGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	repo := &fakePlanRepo{plan: draftPlan(user)}
	s := NewPlanService(repo)

	_, err := s.List(ctx, uuid.Nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	ps, err := s.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, user, repo.listInUser)

	_, err = s.Get(ctx, user, uuid.Nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.Get(ctx, user, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlanService_Update_Draft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	repo := &fakePlanRepo{plan: draftPlan(user)}
	s := NewPlanService(repo)

	years := 3
	_, err := s.Update(ctx, user, repo.plan.ID, model.PlanPatch{Years: &years, DraftCardMessages: map[string]string{"0": "hi"}})
	require.NoError(t, err)
	require.Equal(t, repo.plan.ID, repo.updInPlan)
	require.Equal(t, 3, *repo.updInPatch.Years)

	years = 42
	_, err = s.Update(ctx, user, repo.plan.ID, model.PlanPatch{Years: &years})
	require.ErrorIs(t, err, errs.ErrValidation, "merged structure is validated")

	_, err = s.Update(ctx, user, repo.plan.ID, model.PlanPatch{DraftCardMessages: map[string]string{"first": "x"}})
	require.ErrorIs(t, err, errs.ErrValidation)

	long := strings.Repeat("a", MaxMessageLen+1)
	_, err = s.Update(ctx, user, repo.plan.ID, model.PlanPatch{DraftCardMessages: map[string]string{"0": long}})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Update(ctx, user, repo.plan.ID, model.PlanPatch{Recipient: &model.Recipient{Name: "Bob"}})
	require.ErrorIs(t, err, errs.ErrValidation)

	repo.updInPatch = nil
	got, err := s.Update(ctx, user, repo.plan.ID, model.PlanPatch{})
	require.NoError(t, err)
	require.Equal(t, repo.plan.ID, got.ID)
	require.Nil(t, repo.updInPatch, "empty patch never reaches storage")
}

func TestPlanService_Update_Active(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	p := draftPlan(user)
	p.Status = model.StatusActive
	repo := &fakePlanRepo{plan: p}
	s := NewPlanService(repo)

	b := decimal.NewFromInt(90)
	_, err := s.Update(ctx, user, p.ID, model.PlanPatch{Budget: &b})
	require.ErrorIs(t, err, errs.ErrPlanActive)

	_, err = s.Update(ctx, user, p.ID, model.PlanPatch{DraftCardMessages: map[string]string{}})
	require.ErrorIs(t, err, errs.ErrPlanActive)

	r := testRecipient()
	r.Suburb = "Fitzroy"
	_, err = s.Update(ctx, user, p.ID, model.PlanPatch{Recipient: &r})
	require.NoError(t, err, "recipient stays editable")
	require.Equal(t, "Fitzroy", repo.updInPatch.Recipient.Suburb)
}

func TestPlanService_UpdateEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakePlanRepo{}
	s := NewPlanService(repo)
	user, ev := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	_, err := s.UpdateEvent(ctx, user, uuid.Nil, "x")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.UpdateEvent(ctx, user, ev, strings.Repeat("é", MaxMessageLen+1))
	require.ErrorIs(t, err, errs.ErrValidation)

	got, err := s.UpdateEvent(ctx, user, ev, strings.Repeat("é", MaxMessageLen))
	require.NoError(t, err, "limit counts runes")
	require.Equal(t, ev, got.ID)
	require.Equal(t, ev, repo.evInID)

	repo.evErr = errs.ErrNotFound
	_, err = s.UpdateEvent(ctx, user, ev, "x")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlanService_Projected(t *testing.T) {
	t.Parallel()
	user := uuid.Must(uuid.NewV4())
	repo := &fakePlanRepo{plan: draftPlan(user)}
	s := NewPlanService(repo)

	ds, err := s.Projected(context.Background(), user, repo.plan.ID)
	require.NoError(t, err)
	require.Len(t, ds, 4)
	require.Equal(t, "2025-01-01", model.FormatDate(ds[0].Date))
	require.Equal(t, "2025-04-02", model.FormatDate(ds[1].Date))
}

func TestPlanService_Quote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	repo := &fakePlanRepo{plan: draftPlan(user)}
	s := NewPlanService(repo)

	q, err := s.Quote(ctx, user, model.PriceRequest{PlanID: repo.plan.ID})
	require.NoError(t, err)
	// 4 x 75 + 4 x 9.95
	require.Equal(t, "339.80", q.Amount.StringFixed(2))

	alt := testStructure()
	alt.Frequency = model.Annually
	q, err = s.Quote(ctx, user, model.PriceRequest{PlanID: repo.plan.ID, Structure: &alt})
	require.NoError(t, err)
	require.Equal(t, "84.95", q.Amount.StringFixed(2), "explicit structure wins over the stored one")

	repo.getErr = errs.ErrNotFound
	_, err = s.Quote(ctx, user, model.PriceRequest{PlanID: repo.plan.ID})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlanService_Activate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	user := uuid.Must(uuid.NewV4())
	p := draftPlan(user)
	p.DraftCardMessages = map[string]string{"0": "first", "2": "third", "9": "beyond"}
	repo := &fakePlanRepo{plan: p}
	s := NewPlanService(repo)

	got, err := s.Activate(ctx, user, p.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, got.Status)
	require.Len(t, repo.actInEvents, 4)
	for i, ev := range repo.actInEvents {
		require.Equal(t, i, ev.Index)
		require.Equal(t, p.ID, ev.PlanID)
		require.NotEqual(t, uuid.Nil, ev.ID)
	}
	require.Equal(t, "first", repo.actInEvents[0].MessageText())
	require.Nil(t, repo.actInEvents[1].Message)
	require.Equal(t, "third", repo.actInEvents[2].MessageText())

	p.Status = model.StatusActive
	_, err = s.Activate(ctx, user, p.ID)
	require.ErrorIs(t, err, errs.ErrPlanActive)

	p.Status = model.StatusDraft
	p.Recipient = model.Recipient{}
	_, err = s.Activate(ctx, user, p.ID)
	require.ErrorIs(t, err, errs.ErrValidation, "no address, no deliveries")
}
