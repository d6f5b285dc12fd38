package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/xs2a/pkg/slogx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = slogx.RequestIDFromContext(r.Context())
	}))

	t.Run("keeps a valid uuid", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, id, seen)
		require.Equal(t, id, rec.Header().Get("X-Request-ID"))
		require.Contains(t, buf.String(), id)
	})

	t.Run("replaces a missing or malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		req.Header.Set("X-Request-ID", "not-a-uuid")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})
}

func TestNewTagsRecordsAndRedactsSecrets(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{
		Service: "xs2a-service",
		Version: "1.2.3",
		Env:     "test",
		Level:   "debug",
		Format:  "json",
		Output:  &buf,
	})

	logger.Debug("psu update", "password", "12345", "Authorization", "Bearer abc",
		slog.Group("req", "sca_authentication_data", "654321"), "psu_id", "alice")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "xs2a-service", rec["service"])
	require.Equal(t, "1.2.3", rec["version"])
	require.Equal(t, "test", rec["env"])
	require.Equal(t, slogx.Redacted, rec["password"])
	require.Equal(t, slogx.Redacted, rec["Authorization"])
	require.Equal(t, slogx.Redacted, rec["req"].(map[string]any)["sca_authentication_data"])
	require.Equal(t, "alice", rec["psu_id"])
	require.NotContains(t, buf.String(), "12345")
	require.NotContains(t, buf.String(), "654321")
	require.Same(t, logger, slog.Default())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("verbose"))
}
