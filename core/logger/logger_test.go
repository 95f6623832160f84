package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger_KeepsExisting(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	require.NotNil(t, rlog)
	id := RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)

	again, _ := ContextWithLogger(ctx)
	assert.Equal(t, id, RequestIDFromContext(again))
}

func TestContextWithLoggerIdentity(t *testing.T) {
	ctx, _ := ContextWithLogger(context.Background())
	ctx, rlog := ContextWithLoggerIdentity(ctx, "alice")
	assert.Equal(t, "alice", rlog.Data["identity"])

	var values contextLoggerValues
	require.NoError(t, json.Unmarshal(SerializeLoggerContext(ctx), &values))
	assert.Equal(t, "alice", values.Identity)
	assert.Equal(t, RequestIDFromContext(ctx), values.RequestID)
}

func TestSerializeLoggerContext_NoLogger(t *testing.T) {
	assert.Equal(t, "{}", string(SerializeLoggerContext(context.Background())))
	assert.NotNil(t, FromContext(nil))
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)
	var seen string
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}
