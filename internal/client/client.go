// Package client is the customer-side gRPC client of the plan API.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	u "github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/and161185/bloomplan/internal/convert"
	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	wire "github.com/and161185/bloomplan/internal/planwire"
)

// TokenSource returns the current access token or "" when signed out.
type TokenSource func() string

// Options configure the connection.
type Options struct {
	Addr      string
	CACert    string // PEM file; empty uses system roots
	Insecure  bool   // TLS without certificate verification (dev)
	Plaintext bool   // no TLS at all (local dev, tests)
	Token     TokenSource
	Logger    *zap.Logger

	// DialOptions are appended after the ones built from the fields above.
	DialOptions []grpc.DialOption
}

// Client talks to PlanService. It is safe for concurrent use.
type Client struct {
	cc     *grpc.ClientConn
	api    wire.PlanServiceClient
	health healthpb.HealthClient
	log    *zap.Logger
}

type bearerCreds struct {
	token  TokenSource
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	tok := b.token()
	if tok == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + tok}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// New creates a client. No connection is made until the first call.
func New(o Options) (*Client, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var opts []grpc.DialOption
	if o.Plaintext {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		creds, err := loadTLS(o.CACert, o.Insecure)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	}
	if o.Token != nil {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Plaintext}))
	}
	opts = append(opts, o.DialOptions...)

	cc, err := grpc.NewClient(o.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.Addr, err)
	}
	return &Client{
		cc:     cc,
		api:    wire.NewPlanServiceClient(cc),
		health: healthpb.NewHealthClient(cc),
		log:    log,
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

// mapErr turns status codes into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		sentinel = errs.ErrUnauthorized
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.InvalidArgument:
		sentinel = errs.ErrValidation
	case codes.FailedPrecondition:
		sentinel = errs.ErrPlanActive
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

// Ping checks the server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapErr(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("server status %s", resp.GetStatus())
	}
	return nil
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, username, password string) (u.UUID, error) {
	resp, err := c.api.Register(ctx, &wire.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return u.Nil, mapErr(err)
	}
	return convert.ParseID("user id", resp.UserID)
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, username, password string) (model.Tokens, error) {
	resp, err := c.api.Login(ctx, &wire.LoginRequest{Username: username, Password: password})
	if err != nil {
		return model.Tokens{}, mapErr(err)
	}
	return model.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken, ExpiresAt: resp.ExpiresAt}, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.api.Logout(ctx, &wire.LogoutRequest{})
	return mapErr(err)
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	resp, err := c.api.GetProfile(ctx, &wire.GetProfileRequest{})
	if err != nil {
		return model.Profile{}, mapErr(err)
	}
	return convert.FromWireProfile(resp)
}

// CreatePlan creates a draft plan.
func (c *Client) CreatePlan(ctx context.Context, s model.Structure, r model.Recipient) (*model.Plan, error) {
	resp, err := c.api.CreatePlan(ctx, &wire.CreatePlanRequest{
		Structure: convert.ToWireStructure(s),
		Recipient: convert.ToWireRecipient(r),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return convert.FromWirePlan(resp)
}

// ListPlans returns the caller's plans.
func (c *Client) ListPlans(ctx context.Context) ([]model.Plan, error) {
	resp, err := c.api.ListPlans(ctx, &wire.ListPlansRequest{})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.Plan, 0, len(resp.Plans))
	for _, w := range resp.Plans {
		p, err := convert.FromWirePlan(w)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// GetPlan fetches one plan with its events.
func (c *Client) GetPlan(ctx context.Context, id u.UUID) (*model.Plan, error) {
	resp, err := c.api.GetPlan(ctx, &wire.GetPlanRequest{PlanID: id.String()})
	if err != nil {
		return nil, mapErr(err)
	}
	return convert.FromWirePlan(resp)
}

// GetProjectedDeliveries asks the server for the projected schedule of a plan.
func (c *Client) GetProjectedDeliveries(ctx context.Context, id u.UUID) ([]model.ProjectedDelivery, error) {
	resp, err := c.api.GetProjectedDeliveries(ctx, &wire.GetProjectedDeliveriesRequest{PlanID: id.String()})
	if err != nil {
		return nil, mapErr(err)
	}
	return convert.FromWireProjected(resp.Deliveries)
}

// UpdatePlan applies a partial update.
func (c *Client) UpdatePlan(ctx context.Context, id u.UUID, p model.PlanPatch) (*model.Plan, error) {
	resp, err := c.api.UpdatePlan(ctx, convert.ToWirePatch(id, p))
	if err != nil {
		return nil, mapErr(err)
	}
	return convert.FromWirePlan(resp)
}

// UpdateEvent sets the card message of one delivery event.
func (c *Client) UpdateEvent(ctx context.Context, eventID u.UUID, message string) (model.DeliveryEvent, error) {
	resp, err := c.api.UpdateEvent(ctx, &wire.UpdateEventRequest{EventID: eventID.String(), Message: message})
	if err != nil {
		return model.DeliveryEvent{}, mapErr(err)
	}
	return convert.FromWireEvent(resp)
}

// CalculatePrice quotes a stored plan or a hypothetical structure.
func (c *Client) CalculatePrice(ctx context.Context, req model.PriceRequest) (model.PriceQuote, error) {
	resp, err := c.api.CalculatePrice(ctx, convert.ToWirePriceRequest(req))
	if err != nil {
		return model.PriceQuote{}, mapErr(err)
	}
	return convert.FromWireQuote(resp)
}

// ActivatePlan marks a plan paid and materializes its delivery events.
func (c *Client) ActivatePlan(ctx context.Context, id u.UUID) (*model.Plan, error) {
	resp, err := c.api.ActivatePlan(ctx, &wire.ActivatePlanRequest{PlanID: id.String()})
	if err != nil {
		return nil, mapErr(err)
	}
	c.log.Debug("plan activated", zap.String("plan_id", id.String()))
	return convert.FromWirePlan(resp)
}
