// Package grpcserver exposes the plan API gRPC handlers.
package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/bloomplan/internal/convert"
	"github.com/and161185/bloomplan/internal/errs"
	wire "github.com/and161185/bloomplan/internal/planwire"
	"github.com/and161185/bloomplan/internal/service"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Server wires services into gRPC handlers.
type Server struct {
	wire.UnimplementedPlanServiceServer
	auth  service.AuthService
	plans service.PlanService
}

var _ wire.PlanServiceServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, plans service.PlanService) *Server {
	return &Server{auth: auth, plans: plans}
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrPlanActive):
		return status.Error(codes.FailedPrecondition, "plan is active")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, op+": canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, op+": deadline exceeded")
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func badRequest(err error) error { return status.Error(codes.InvalidArgument, err.Error()) }

// claims returns the caller identity set by AuthUnary, or verifies the bearer
// token itself when the interceptor is not installed.
func (s *Server) claims(ctx context.Context) (service.Claims, error) {
	if c, ok := ClaimsFromCtx(ctx); ok {
		return c, nil
	}
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return service.Claims{}, status.Error(codes.Unauthenticated, "no auth")
	}
	c, err := s.auth.Authenticate(ctx, tok)
	if err != nil {
		return service.Claims{}, toStatus("auth", err)
	}
	return c, nil
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *wire.RegisterRequest) (*wire.RegisterResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username/password")
	}
	userID, err := s.auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus("register", err)
	}
	return &wire.RegisterResponse{UserID: userID}, nil
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *wire.LoginRequest) (*wire.LoginResponse, error) {
	tok, u, err := s.auth.LoginWithIP(ctx, req.Username, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, toStatus("login", err)
	}
	return &wire.LoginResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		UserID:       u.ID.String(),
	}, nil
}

// Logout revokes the caller's access token.
func (s *Server) Logout(ctx context.Context, _ *wire.LogoutRequest) (*wire.LogoutResponse, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, c); err != nil {
		return nil, toStatus("logout", err)
	}
	return &wire.LogoutResponse{}, nil
}

func (s *Server) GetProfile(ctx context.Context, _ *wire.GetProfileRequest) (*wire.Profile, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.auth.Profile(ctx, c.UserID)
	if err != nil {
		return nil, toStatus("profile", err)
	}
	return convert.ToWireProfile(p), nil
}

// --- Plans ---

func (s *Server) CreatePlan(ctx context.Context, req *wire.CreatePlanRequest) (*wire.Plan, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	st, err := convert.FromWireStructure(req.Structure)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.plans.Create(ctx, c.UserID, st, convert.FromWireRecipient(req.Recipient))
	if err != nil {
		return nil, toStatus("create plan", err)
	}
	return convert.ToWirePlan(*p), nil
}

func (s *Server) ListPlans(ctx context.Context, _ *wire.ListPlansRequest) (*wire.ListPlansResponse, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := s.plans.List(ctx, c.UserID)
	if err != nil {
		return nil, toStatus("list plans", err)
	}
	out := &wire.ListPlansResponse{Plans: make([]*wire.Plan, 0, len(ps))}
	for _, p := range ps {
		out.Plans = append(out.Plans, convert.ToWirePlan(p))
	}
	return out, nil
}

func (s *Server) GetPlan(ctx context.Context, req *wire.GetPlanRequest) (*wire.Plan, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("plan id", req.PlanID)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.plans.Get(ctx, c.UserID, id)
	if err != nil {
		return nil, toStatus("get plan", err)
	}
	return convert.ToWirePlan(*p), nil
}

// GetProjectedDeliveries returns the delivery slots of the plan's stored structure.
func (s *Server) GetProjectedDeliveries(ctx context.Context, req *wire.GetProjectedDeliveriesRequest) (*wire.GetProjectedDeliveriesResponse, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("plan id", req.PlanID)
	if err != nil {
		return nil, badRequest(err)
	}
	ds, err := s.plans.Projected(ctx, c.UserID, id)
	if err != nil {
		return nil, toStatus("projected deliveries", err)
	}
	return &wire.GetProjectedDeliveriesResponse{Deliveries: convert.ToWireProjected(ds)}, nil
}

// UpdatePlan applies a partial update.
func (s *Server) UpdatePlan(ctx context.Context, req *wire.UpdatePlanRequest) (*wire.Plan, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	id, patch, err := convert.FromWirePatch(req)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.plans.Update(ctx, c.UserID, id, patch)
	if err != nil {
		return nil, toStatus("update plan", err)
	}
	return convert.ToWirePlan(*p), nil
}

func (s *Server) UpdateEvent(ctx context.Context, req *wire.UpdateEventRequest) (*wire.DeliveryEvent, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("event id", req.EventID)
	if err != nil {
		return nil, badRequest(err)
	}
	ev, err := s.plans.UpdateEvent(ctx, c.UserID, id, req.Message)
	if err != nil {
		return nil, toStatus("update event", err)
	}
	return convert.ToWireEvent(ev), nil
}

func (s *Server) CalculatePrice(ctx context.Context, req *wire.CalculatePriceRequest) (*wire.PriceQuote, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	pr, err := convert.FromWirePriceRequest(req)
	if err != nil {
		return nil, badRequest(err)
	}
	q, err := s.plans.Quote(ctx, c.UserID, pr)
	if err != nil {
		return nil, toStatus("calculate price", err)
	}
	return convert.ToWireQuote(q), nil
}

// ActivatePlan materializes delivery events after payment.
func (s *Server) ActivatePlan(ctx context.Context, req *wire.ActivatePlanRequest) (*wire.Plan, error) {
	c, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.ParseID("plan id", req.PlanID)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.plans.Activate(ctx, c.UserID, id)
	if err != nil {
		return nil, toStatus("activate plan", err)
	}
	return convert.ToWirePlan(*p), nil
}
