package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

// InterceptorChain 拦截器链
type InterceptorChain struct {
	log              logger.Logger
	rateLimitService service.RateLimitService
}

// NewInterceptorChain 创建拦截器链。rateLimitService 为 nil 时不限流。
func NewInterceptorChain(log logger.Logger, rateLimitService service.RateLimitService) *InterceptorChain {
	return &InterceptorChain{
		log:              log,
		rateLimitService: rateLimitService,
	}
}

// UnaryRecoveryInterceptor 恢复拦截器(捕获 panic)
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Error(grpcCodes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor 日志拦截器
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		ic.log.Debug(ctx, "gRPC request completed",
			logger.String("method", info.FullMethod),
			logger.String("client_ip", peerIP(ctx)),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("status", status.Code(err).String()),
		)
		return resp, err
	}
}

// UnaryRateLimitInterceptor 限流拦截器，按对端 IP 计数，限流服务故障时降级放行
func (ic *InterceptorChain) UnaryRateLimitInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ic.rateLimitService == nil {
			return handler(ctx, req)
		}
		ip := peerIP(ctx)
		allowed, _, _, err := ic.rateLimitService.Allow(ctx, "grpc:"+ip)
		if err != nil {
			ic.log.Error(ctx, "rate limit check failed", err, logger.String("method", info.FullMethod))
			return handler(ctx, req)
		}
		if !allowed {
			ic.log.Warn(ctx, "rate limit exceeded",
				logger.String("client_ip", ip),
				logger.String("method", info.FullMethod),
			)
			return nil, status.Error(grpcCodes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// UnaryErrorInterceptor 错误转换拦截器(将领域错误转换为 gRPC 状态码)
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		return resp, convertDomainErrorToGRPC(err)
	}
}

// convertDomainErrorToGRPC 将领域错误转换为 gRPC 错误
func convertDomainErrorToGRPC(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}

	switch appErr.Code() {
	case errors.CodeNotFound:
		return status.Error(grpcCodes.NotFound, appErr.Error())
	case errors.CodeValidation, errors.CodeUnknownOperation:
		return status.Error(grpcCodes.InvalidArgument, appErr.Error())
	case errors.CodeMissingToken, errors.CodeInvalidCredentials:
		return status.Error(grpcCodes.Unauthenticated, appErr.Error())
	case errors.CodeInvalidToken:
		return status.Error(grpcCodes.PermissionDenied, appErr.Error())
	case errors.CodePartialFailure:
		return status.Error(grpcCodes.Aborted, appErr.Error())
	case errors.CodeRateLimitExceeded:
		return status.Error(grpcCodes.ResourceExhausted, appErr.Error())
	case errors.CodeTimeout:
		return status.Error(grpcCodes.DeadlineExceeded, appErr.Error())
	case errors.CodeExternalTool:
		return status.Error(grpcCodes.Unavailable, appErr.Error())
	default:
		return status.Error(grpcCodes.Internal, "internal server error")
	}
}

// ChainUnaryInterceptors 链式调用所有拦截器
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		ic.UnaryRecoveryInterceptor(),  // 1. 恢复 panic
		ic.UnaryLoggingInterceptor(),   // 2. 日志
		ic.UnaryRateLimitInterceptor(), // 3. 限流
		ic.UnaryErrorInterceptor(),     // 4. 错误转换
	)
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
