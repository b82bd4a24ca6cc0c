package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service/mocks"
	"github.com/turtacn/certgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

type stubCA struct {
	state *models.CAState
	err   error
}

func (s *stubCA) Status(context.Context) (*models.CAState, error) {
	return s.state, s.err
}

func startHealthServer(t *testing.T, ca CAStatusReader, chain *InterceptorChain) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewHealthServer(ca, chain, logger.NewNopLogger())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_FollowsCAState(t *testing.T) {
	ca := &stubCA{state: &models.CAState{Status: models.CAStatusNotFound}}
	srv, client := startHealthServer(t, ca, NewInterceptorChain(logger.NewNopLogger(), nil))

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, CAServiceName))

	ca.state = &models.CAState{Status: models.CAStatusActive}
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, srv.Refresh(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, CAServiceName))

	ca.state, ca.err = nil, errors.New("disk gone")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.Refresh(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, CAServiceName))
}

func TestHealthServer_RateLimited(t *testing.T) {
	chain := NewInterceptorChain(logger.NewNopLogger(), ratelimit.NewMemoryRateLimiter(1, time.Minute))
	_, client := startHealthServer(t, &stubCA{state: &models.CAState{}}, chain)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
}

func TestHealthServer_RateLimiterErrorFailsOpen(t *testing.T) {
	limiter := new(mocks.MockRateLimitService)
	limiter.On("Allow", mock.Anything, mock.MatchedBy(func(key string) bool { return len(key) > len("grpc:") })).
		Return(false, 0, time.Time{}, errors.New("redis down"))
	_, client := startHealthServer(t, &stubCA{state: &models.CAState{}}, NewInterceptorChain(logger.NewNopLogger(), limiter))

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	limiter.AssertExpectations(t)
}

func TestConvertDomainErrorToGRPC(t *testing.T) {
	cases := []struct {
		err  error
		code grpcCodes.Code
	}{
		{errors.NotFound("certificate"), grpcCodes.NotFound},
		{errors.Validation("bad"), grpcCodes.InvalidArgument},
		{errors.MissingToken(), grpcCodes.Unauthenticated},
		{errors.InvalidToken("expired"), grpcCodes.PermissionDenied},
		{errors.PartialFailure("half"), grpcCodes.Aborted},
		{errors.RateLimitExceeded(), grpcCodes.ResourceExhausted},
		{errors.New("boom"), grpcCodes.Internal},
		{status.Error(grpcCodes.Canceled, "gone"), grpcCodes.Canceled},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(convertDomainErrorToGRPC(tc.err)), tc.err.Error())
	}
}
