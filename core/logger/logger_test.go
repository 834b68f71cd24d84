package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger_KeepsExisting(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	ctx2, rlog2 := ContextWithLogger(ctx)
	assert.Equal(t, ctx, ctx2)
	assert.Equal(t, rlog, rlog2)
	assert.NotEmpty(t, RequestIDFromContext(ctx))
}

func TestSerializeLoggerContext_RoundTrip(t *testing.T) {
	ctx, _ := ContextWithLoggerIdentity(context.Background(), "jdoe")
	data := SerializeLoggerContext(ctx)

	restored := ContextWithLoggerFromData(context.Background(), data)
	require.NotNil(t, loggerFromContext(restored))
	assert.Equal(t, RequestIDFromContext(ctx), RequestIDFromContext(restored))
	assert.Equal(t, "jdoe", loggerValues(restored).Identity)
}

func TestContextWithLoggerFromData_InvalidData(t *testing.T) {
	ctx := ContextWithLoggerFromData(nil, []byte("{}"))
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.Equal(t, "{}", string(SerializeLoggerContext(context.Background())))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("chatty"))
}
