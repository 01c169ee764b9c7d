package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"versync/internal/transfer"
)

const serviceName = "versync.History"

// historyServer is the handler type registered with gRPC.
type historyServer interface {
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
}

var historyServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*historyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unaryHandler("List", func(s historyServer, ctx context.Context, req *ListRequest) (any, error) {
			return s.List(ctx, req)
		})},
		{MethodName: "Read", Handler: unaryHandler("Read", func(s historyServer, ctx context.Context, req *ReadRequest) (any, error) {
			return s.Read(ctx, req)
		})},
		{MethodName: "Write", Handler: unaryHandler("Write", func(s historyServer, ctx context.Context, req *WriteRequest) (any, error) {
			return s.Write(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "versync/history",
}

// unaryHandler adapts a typed method to grpc.MethodDesc.Handler.
func unaryHandler[Req any, PReq interface {
	*Req
	message
}](method string, call func(historyServer, context.Context, PReq) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := PReq(new(Req))
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(historyServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(historyServer), ctx, req.(PReq))
		})
	}
}

// Server implements the History gRPC service on top of a backend.
type Server struct {
	backend transfer.Backend
	log     *logrus.Entry
}

// NewServer creates a service instance. A nil logger uses the logrus
// standard logger.
func NewServer(backend transfer.Backend, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{backend: backend, log: log.WithField("component", "peer")}
}

// Register adds the service to a gRPC server built with ServerOptions.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&historyServiceDesc, s)
}

// ServerOptions returns the options every server hosting the service needs.
func (s *Server) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(wireCodec{}),
		grpc.ChainUnaryInterceptor(s.logRequests),
	}
}

// Serve creates a gRPC server, registers the service and serves lis until
// ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := grpc.NewServer(s.ServerOptions()...)
	s.Register(gs)

	go func() {
		<-ctx.Done()
		s.log.Info("Stopping peer service")
		gs.GracefulStop()
	}()

	s.log.WithField("addr", lis.Addr().String()).Info("Starting peer service")
	if err := gs.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// List handles List requests.
func (s *Server) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	keys, err := s.backend.List(ctx, req.Prefix)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListResponse{Keys: keys}, nil
}

// Read handles Read requests.
func (s *Server) Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key cannot be empty")
	}
	data, err := s.backend.Read(ctx, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReadResponse{Data: data}, nil
}

// Write handles Write requests.
func (s *Server) Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error) {
	if req.Key == "" {
		return nil, status.Error(codes.InvalidArgument, "key cannot be empty")
	}
	if err := s.backend.Write(ctx, req.Key, req.Data); err != nil {
		return nil, toStatus(err)
	}
	return &WriteResponse{}, nil
}

func (s *Server) logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"code":     status.Code(err).String(),
		"duration": time.Since(start),
	}).Debug("Handled request")
	return resp, err
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, transfer.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
