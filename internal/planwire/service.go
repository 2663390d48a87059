package planwire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "bloomplan.plan.v1.PlanService"

// Method names.
const (
	MethodRegister               = "Register"
	MethodLogin                  = "Login"
	MethodLogout                 = "Logout"
	MethodGetProfile             = "GetProfile"
	MethodCreatePlan             = "CreatePlan"
	MethodListPlans              = "ListPlans"
	MethodGetPlan                = "GetPlan"
	MethodGetProjectedDeliveries = "GetProjectedDeliveries"
	MethodUpdatePlan             = "UpdatePlan"
	MethodUpdateEvent            = "UpdateEvent"
	MethodCalculatePrice         = "CalculatePrice"
	MethodActivatePlan           = "ActivatePlan"
)

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// PlanServiceServer is the server API for PlanService.
type PlanServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	GetProfile(context.Context, *GetProfileRequest) (*Profile, error)
	CreatePlan(context.Context, *CreatePlanRequest) (*Plan, error)
	ListPlans(context.Context, *ListPlansRequest) (*ListPlansResponse, error)
	GetPlan(context.Context, *GetPlanRequest) (*Plan, error)
	GetProjectedDeliveries(context.Context, *GetProjectedDeliveriesRequest) (*GetProjectedDeliveriesResponse, error)
	UpdatePlan(context.Context, *UpdatePlanRequest) (*Plan, error)
	UpdateEvent(context.Context, *UpdateEventRequest) (*DeliveryEvent, error)
	CalculatePrice(context.Context, *CalculatePriceRequest) (*PriceQuote, error)
	ActivatePlan(context.Context, *ActivatePlanRequest) (*Plan, error)
}

// UnimplementedPlanServiceServer can be embedded for forward compatibility.
type UnimplementedPlanServiceServer struct{}

func unimplemented(m string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", m)
}

func (UnimplementedPlanServiceServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, unimplemented(MethodRegister)
}
func (UnimplementedPlanServiceServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedPlanServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, unimplemented(MethodLogout)
}
func (UnimplementedPlanServiceServer) GetProfile(context.Context, *GetProfileRequest) (*Profile, error) {
	return nil, unimplemented(MethodGetProfile)
}
func (UnimplementedPlanServiceServer) CreatePlan(context.Context, *CreatePlanRequest) (*Plan, error) {
	return nil, unimplemented(MethodCreatePlan)
}
func (UnimplementedPlanServiceServer) ListPlans(context.Context, *ListPlansRequest) (*ListPlansResponse, error) {
	return nil, unimplemented(MethodListPlans)
}
func (UnimplementedPlanServiceServer) GetPlan(context.Context, *GetPlanRequest) (*Plan, error) {
	return nil, unimplemented(MethodGetPlan)
}
func (UnimplementedPlanServiceServer) GetProjectedDeliveries(context.Context, *GetProjectedDeliveriesRequest) (*GetProjectedDeliveriesResponse, error) {
	return nil, unimplemented(MethodGetProjectedDeliveries)
}
func (UnimplementedPlanServiceServer) UpdatePlan(context.Context, *UpdatePlanRequest) (*Plan, error) {
	return nil, unimplemented(MethodUpdatePlan)
}
func (UnimplementedPlanServiceServer) UpdateEvent(context.Context, *UpdateEventRequest) (*DeliveryEvent, error) {
	return nil, unimplemented(MethodUpdateEvent)
}
func (UnimplementedPlanServiceServer) CalculatePrice(context.Context, *CalculatePriceRequest) (*PriceQuote, error) {
	return nil, unimplemented(MethodCalculatePrice)
}
func (UnimplementedPlanServiceServer) ActivatePlan(context.Context, *ActivatePlanRequest) (*Plan, error) {
	return nil, unimplemented(MethodActivatePlan)
}

func unary[Req, Resp any](name string, call func(PlanServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PlanServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlanServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PlanServiceDesc is the grpc.ServiceDesc for PlanService.
var PlanServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, PlanServiceServer.Register),
		unary(MethodLogin, PlanServiceServer.Login),
		unary(MethodLogout, PlanServiceServer.Logout),
		unary(MethodGetProfile, PlanServiceServer.GetProfile),
		unary(MethodCreatePlan, PlanServiceServer.CreatePlan),
		unary(MethodListPlans, PlanServiceServer.ListPlans),
		unary(MethodGetPlan, PlanServiceServer.GetPlan),
		unary(MethodGetProjectedDeliveries, PlanServiceServer.GetProjectedDeliveries),
		unary(MethodUpdatePlan, PlanServiceServer.UpdatePlan),
		unary(MethodUpdateEvent, PlanServiceServer.UpdateEvent),
		unary(MethodCalculatePrice, PlanServiceServer.CalculatePrice),
		unary(MethodActivatePlan, PlanServiceServer.ActivatePlan),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bloomplan/plan/v1",
}

// RegisterPlanServiceServer registers srv with s.
func RegisterPlanServiceServer(s grpc.ServiceRegistrar, srv PlanServiceServer) {
	s.RegisterService(&PlanServiceDesc, srv)
}

// PlanServiceClient is the client API for PlanService.
type PlanServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error)
	GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*Profile, error)
	CreatePlan(ctx context.Context, in *CreatePlanRequest, opts ...grpc.CallOption) (*Plan, error)
	ListPlans(ctx context.Context, in *ListPlansRequest, opts ...grpc.CallOption) (*ListPlansResponse, error)
	GetPlan(ctx context.Context, in *GetPlanRequest, opts ...grpc.CallOption) (*Plan, error)
	GetProjectedDeliveries(ctx context.Context, in *GetProjectedDeliveriesRequest, opts ...grpc.CallOption) (*GetProjectedDeliveriesResponse, error)
	UpdatePlan(ctx context.Context, in *UpdatePlanRequest, opts ...grpc.CallOption) (*Plan, error)
	UpdateEvent(ctx context.Context, in *UpdateEventRequest, opts ...grpc.CallOption) (*DeliveryEvent, error)
	CalculatePrice(ctx context.Context, in *CalculatePriceRequest, opts ...grpc.CallOption) (*PriceQuote, error)
	ActivatePlan(ctx context.Context, in *ActivatePlanRequest, opts ...grpc.CallOption) (*Plan, error)
}

type planServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPlanServiceClient wraps a connection.
func NewPlanServiceClient(cc grpc.ClientConnInterface) PlanServiceClient {
	return &planServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *planServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}
func (c *planServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}
func (c *planServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, MethodLogout, in, opts)
}
func (c *planServiceClient) GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, MethodGetProfile, in, opts)
}
func (c *planServiceClient) CreatePlan(ctx context.Context, in *CreatePlanRequest, opts ...grpc.CallOption) (*Plan, error) {
	return invoke[Plan](ctx, c.cc, MethodCreatePlan, in, opts)
}
func (c *planServiceClient) ListPlans(ctx context.Context, in *ListPlansRequest, opts ...grpc.CallOption) (*ListPlansResponse, error) {
	return invoke[ListPlansResponse](ctx, c.cc, MethodListPlans, in, opts)
}
func (c *planServiceClient) GetPlan(ctx context.Context, in *GetPlanRequest, opts ...grpc.CallOption) (*Plan, error) {
	return invoke[Plan](ctx, c.cc, MethodGetPlan, in, opts)
}
func (c *planServiceClient) GetProjectedDeliveries(ctx context.Context, in *GetProjectedDeliveriesRequest, opts ...grpc.CallOption) (*GetProjectedDeliveriesResponse, error) {
	return invoke[GetProjectedDeliveriesResponse](ctx, c.cc, MethodGetProjectedDeliveries, in, opts)
}
func (c *planServiceClient) UpdatePlan(ctx context.Context, in *UpdatePlanRequest, opts ...grpc.CallOption) (*Plan, error) {
	return invoke[Plan](ctx, c.cc, MethodUpdatePlan, in, opts)
}
func (c *planServiceClient) UpdateEvent(ctx context.Context, in *UpdateEventRequest, opts ...grpc.CallOption) (*DeliveryEvent, error) {
	return invoke[DeliveryEvent](ctx, c.cc, MethodUpdateEvent, in, opts)
}
func (c *planServiceClient) CalculatePrice(ctx context.Context, in *CalculatePriceRequest, opts ...grpc.CallOption) (*PriceQuote, error) {
	return invoke[PriceQuote](ctx, c.cc, MethodCalculatePrice, in, opts)
}
func (c *planServiceClient) ActivatePlan(ctx context.Context, in *ActivatePlanRequest, opts ...grpc.CallOption) (*Plan, error) {
	return invoke[Plan](ctx, c.cc, MethodActivatePlan, in, opts)
}
