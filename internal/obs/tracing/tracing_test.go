package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func TestWrapClient_Spans(t *testing.T) {
	ctx := context.Background()
	sr, tp := newRecorder()
	c := WrapClient(memstore.New("b"), tp)

	require.NoError(t, c.PutObject(ctx, "b", "k", strings.NewReader("v"), 1, filestore.RequestOptions{}))
	_, err := c.StatObject(ctx, "b", "absent")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "filestore.PutObject", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "b", attrs["storage.bucket"])
	assert.Equal(t, "k", attrs["storage.key"])
	assert.Equal(t, "1", attrs["storage.size"])

	assert.Equal(t, "filestore.StatObject", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1, "error recorded as span event")
}

func TestMiddleware(t *testing.T) {
	sr, tp := newRecorder()
	h := Middleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/files/a.txt", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/files/a.txt", spans[0].Name())
}

func TestOptionsFromValues(t *testing.T) {
	opt := OptionsFromValues(config.NewValues(map[string]any{
		"enabled":      true,
		"endpoint":     "http://localhost:4318",
		"sample_ratio": 0.25,
	}))
	assert.True(t, opt.Enabled)
	assert.Equal(t, 0.25, opt.SampleRatio)
	assert.Equal(t, "bucketfs", opt.ServiceName)

	assert.Equal(t, 1.0, OptionsFromValues(config.Values{}).SampleRatio)
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndpointHelpers(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
	assert.True(t, isInsecure("http://collector:4318"))
	assert.True(t, isInsecure("localhost:4318"))
	assert.False(t, isInsecure("collector.internal:4318"))
}
