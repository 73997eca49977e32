package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/spendsync/internal/adapters/grpc/handler"
)

// Services はサーバーに登録する gRPC サービスの実装です。nil のサービスは登録しません。
type Services struct {
	Organizations handler.OrganizationServiceServer
	Employees     handler.EmployeeServiceServer
	Departments   handler.DepartmentServiceServer
	Integrations  handler.IntegrationServiceServer
	DirectorySync handler.DirectorySyncServiceServer
}

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
func New(listenAddr string, services Services, logger zerolog.Logger, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger))}, opts...)
	srv := grpc.NewServer(opts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	register := func(desc *grpc.ServiceDesc, impl any) {
		if impl == nil {
			return
		}
		srv.RegisterService(desc, impl)
		healthSrv.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
	register(&handler.OrganizationServiceDesc, services.Organizations)
	register(&handler.EmployeeServiceDesc, services.Employees)
	register(&handler.DepartmentServiceDesc, services.Departments)
	register(&handler.IntegrationServiceDesc, services.Integrations)
	register(&handler.DirectorySyncServiceDesc, services.DirectorySync)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     healthSrv,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	return s.Serve(lis)
}

// Serve は指定されたリスナーで待ち受けます。
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

// GracefulStop はヘルスチェックを NOT_SERVING にしてからサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// UnaryLoggingInterceptor は RPC ごとにメソッド名・ステータスコード・所要時間を記録します。
func UnaryLoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		code := status.Code(err)
		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}
