package log

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestCallLevel(t *testing.T) {
	const check = "/grpc.health.v1.Health/Check"
	const other = "/chat.v1.Chat/Send"

	assert.Equal(t, zerolog.DebugLevel, callLevel(check, codes.OK))
	assert.Equal(t, zerolog.WarnLevel, callLevel(check, codes.NotFound))
	assert.Equal(t, zerolog.InfoLevel, callLevel(other, codes.OK))
	assert.Equal(t, zerolog.InfoLevel, callLevel(other, codes.Canceled))
	assert.Equal(t, zerolog.WarnLevel, callLevel(other, codes.PermissionDenied))
	assert.Equal(t, zerolog.ErrorLevel, callLevel(other, codes.Internal))
}

func TestUnaryServerInterceptor(t *testing.T) {
	out := &syncBuffer{}
	intercept := UnaryServerInterceptor(zerolog.New(out))
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(metadataKeyRequestID, "req-9"))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := intercept(ctx, nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		l := Ctx(ctx)
		l.Info().Msg("inside")
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	require.Error(t, err)

	entries := out.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-9", entries[0][FieldRequestID], "handler logger carries the request id")

	done := entries[1]
	assert.Equal(t, "grpc call completed", done[zerolog.MessageFieldName])
	assert.Equal(t, "warn", done[zerolog.LevelFieldName])
	assert.Equal(t, codes.NotFound.String(), done[FieldGRPCCode])
	assert.Equal(t, info.FullMethod, done[FieldGRPCMethod])
}
