package grpcserver

import (
	"context"
	"time"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/metadata"
)

const goodToken = "good.token.sig"

type fakeAuth struct {
	id        uuid.UUID
	regErr    error
	loginErr  error
	loggedOut []service.Claims
	authCalls int
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(context.Context, string, string) (string, error) {
	if f.regErr != nil {
		return "", f.regErr
	}
	return f.id.String(), nil
}
func (f *fakeAuth) LoginWithIP(context.Context, string, string, string) (model.Tokens, model.User, error) {
	if f.loginErr != nil {
		return model.Tokens{}, model.User{}, f.loginErr
	}
	return model.Tokens{AccessToken: goodToken, ExpiresAt: time.Now().Add(time.Minute)}, model.User{ID: f.id}, nil
}
func (f *fakeAuth) Authenticate(_ context.Context, tok string) (service.Claims, error) {
	f.authCalls++
	if tok != goodToken {
		return service.Claims{}, errs.ErrUnauthorized
	}
	return service.Claims{UserID: f.id, JTI: "jti-1", ExpiresAt: time.Now().Add(time.Minute)}, nil
}
func (f *fakeAuth) Logout(_ context.Context, c service.Claims) error {
	f.loggedOut = append(f.loggedOut, c)
	return nil
}
func (f *fakeAuth) Profile(_ context.Context, id uuid.UUID) (model.Profile, error) {
	return model.Profile{UserID: id, Username: "ann"}, nil
}

type fakePlans struct {
	plan      *model.Plan
	err       error
	lastUser  uuid.UUID
	lastPatch model.PlanPatch
	lastQuote model.PriceRequest
	lastMsg   string
}

var _ service.PlanService = (*fakePlans)(nil)

func (f *fakePlans) Create(_ context.Context, userID uuid.UUID, s model.Structure, r model.Recipient) (*model.Plan, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	p := *f.plan
	p.Structure, p.Recipient = s, r
	return &p, nil
}
func (f *fakePlans) List(_ context.Context, userID uuid.UUID) ([]model.Plan, error) {
	f.lastUser = userID
	return []model.Plan{*f.plan}, f.err
}
func (f *fakePlans) Get(_ context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	if planID != f.plan.ID {
		return nil, errs.ErrNotFound
	}
	p := *f.plan
	return &p, nil
}
func (f *fakePlans) Update(_ context.Context, _, _ uuid.UUID, p model.PlanPatch) (*model.Plan, error) {
	f.lastPatch = p
	if f.err != nil {
		return nil, f.err
	}
	c := *f.plan
	return &c, nil
}
func (f *fakePlans) UpdateEvent(_ context.Context, _, eventID uuid.UUID, msg string) (model.DeliveryEvent, error) {
	f.lastMsg = msg
	if f.err != nil {
		return model.DeliveryEvent{}, f.err
	}
	return model.DeliveryEvent{ID: eventID, PlanID: f.plan.ID, DeliveryDate: f.plan.Structure.StartDate, Message: &msg}, nil
}
func (f *fakePlans) Projected(_ context.Context, _, _ uuid.UUID) ([]model.ProjectedDelivery, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.ProjectedDelivery{{Index: 0, Date: f.plan.Structure.StartDate}}, nil
}
func (f *fakePlans) Quote(_ context.Context, _ uuid.UUID, req model.PriceRequest) (model.PriceQuote, error) {
	f.lastQuote = req
	if f.err != nil {
		return model.PriceQuote{}, f.err
	}
	return model.PriceQuote{Amount: decimal.RequireFromString("84.95")}, nil
}
func (f *fakePlans) Activate(_ context.Context, _, _ uuid.UUID) (*model.Plan, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.plan
	p.Status = model.StatusActive
	return &p, nil
}

func newFakes() (*fakeAuth, *fakePlans) {
	user := uuid.Must(uuid.NewV4())
	return &fakeAuth{id: user}, &fakePlans{plan: &model.Plan{
		ID:     uuid.Must(uuid.NewV4()),
		UserID: user,
		Status: model.StatusDraft,
		Structure: model.Structure{
			Frequency: model.Annually,
			StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Years:     1,
			Budget:    decimal.NewFromInt(75),
		},
		DraftCardMessages: map[string]string{},
	}}
}

func ctxAuth(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+token))
}
