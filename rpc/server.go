// Package rpc exposes on demand verification link issuance over gRPC.
//
// Messages are JSON encoded so the service needs no generated stubs; the
// service descriptor is declared by hand.
package rpc

import (
	"context"
	"errors"
	"net"

	authgate "github.com/goliatone/go-auth-gate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName            = "authgate.v1.Verification"
	SendVerificationMethod = "/" + ServiceName + "/SendVerification"
)

// SendVerificationRequest is the request payload.
type SendVerificationRequest struct {
	Email string `json:"email"`
}

// SendVerificationResponse is the success payload.
type SendVerificationResponse struct {
	OK bool `json:"ok"`
}

// VerificationServer is implemented by Service.
type VerificationServer interface {
	SendVerification(ctx context.Context, req *SendVerificationRequest) (*SendVerificationResponse, error)
}

// ServiceDesc describes the verification service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendVerification",
			Handler:    sendVerificationHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authgate/v1/verification",
}

func sendVerificationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SendVerificationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerificationServer).SendVerification(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendVerificationMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VerificationServer).SendVerification(ctx, req.(*SendVerificationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Service adapts authgate.SendVerificationHandler to gRPC.
type Service struct {
	handler *authgate.SendVerificationHandler
	logger  authgate.Logger
}

var _ VerificationServer = (*Service)(nil)

// NewService creates the gRPC service.
func NewService(handler *authgate.SendVerificationHandler, logger authgate.Logger) *Service {
	if logger == nil {
		logger = authgate.DefaultLogger()
	}
	return &Service{handler: handler, logger: logger}
}

// Register attaches the service to srv.
func (s *Service) Register(srv *grpc.Server) {
	srv.RegisterService(&ServiceDesc, s)
}

// SendVerification implements VerificationServer.
func (s *Service) SendVerification(ctx context.Context, req *SendVerificationRequest) (*SendVerificationResponse, error) {
	err := s.handler.Execute(ctx, authgate.SendVerificationMessage{Email: req.Email})
	switch {
	case err == nil:
		return &SendVerificationResponse{OK: true}, nil
	case errors.Is(err, authgate.ErrEmailRequired):
		return nil, status.Error(codes.InvalidArgument, authgate.ErrEmailRequired.Message)
	default:
		s.logger.Error("send verification rpc failed", "error", err)
		return nil, status.Error(codes.Internal, authgate.ErrDeliveryFailed.Message)
	}
}

// Server runs the verification service on its own listener.
type Server struct {
	address string
	service *Service
	logger  authgate.Logger
	srv     *grpc.Server
}

// NewServer creates a server for address.
func NewServer(address string, service *Service, logger authgate.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = authgate.DefaultLogger()
	}
	srv := grpc.NewServer(opts...)
	service.Register(srv)
	return &Server{
		address: address,
		service: service,
		logger:  logger,
		srv:     srv,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info("stopping gRPC server")
		s.srv.GracefulStop()
	}()

	s.logger.Info("starting gRPC server", "address", lis.Addr().String())

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
