package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ==================== Middleware Tests ====================

func TestTraceMiddleware_AssignsRequestID(t *testing.T) {
	var seen string
	h := traceMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestTraceMiddleware_ReusesIncomingRequestID(t *testing.T) {
	h := traceMiddleware(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	incoming := "0b8e4f4e-3c1a-4d7e-9a51-2f6f0d8c9b11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not a uuid\r\nX-Evil: 1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid\r\nX-Evil: 1", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTraceMiddleware_LogsActorFromAuth(t *testing.T) {
	tokens := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), discardLogger())
	raw, info, err := tokens.CreateToken("ci", "u-9")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := traceMiddleware(logger)(authMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/entries", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "u-9", line["actor"])
	assert.Equal(t, info.ID, line["token_id"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.Equal(t, float64(5), line["bytes"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), line["request_id"])
}

func TestTraceMiddleware_AnonymousRequestLogsAtWarn(t *testing.T) {
	tokens := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), discardLogger())

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := traceMiddleware(logger)(authMiddleware(tokens)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "", line["actor"])
	assert.Equal(t, float64(http.StatusUnauthorized), line["status"])
}

func TestRecoverMiddleware(t *testing.T) {
	h := traceMiddleware(discardLogger())(recoverMiddleware(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["request_id"])
	assert.NotEmpty(t, body["request_id"])
}

func TestAuthMiddleware(t *testing.T) {
	tokens := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), discardLogger())
	raw, _, err := tokens.CreateToken("ci", "u-9")
	require.NoError(t, err)

	var actor string
	h := authMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = core.ActorFrom(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"unknown", "Bearer erv_nope", http.StatusUnauthorized},
		{"valid", "Bearer " + raw, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
	assert.Equal(t, "u-9", actor)
}

// ==================== Token Store Tests ====================

func TestFileTokenStore_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	st := NewFileTokenStore(path, discardLogger())

	raw, info, err := st.CreateToken("laptop", "u-1")
	require.NoError(t, err)
	assert.Contains(t, raw, "erv_")
	assert.Equal(t, HashToken(raw), info.TokenHash)

	reloaded := NewFileTokenStore(path, discardLogger())
	require.NoError(t, reloaded.Load())

	got, err := reloaded.GetByHash(HashToken(raw))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.Actor)
	assert.Equal(t, "laptop", got.Desc)

	require.NoError(t, reloaded.DeleteToken(info.ID))
	assert.Error(t, reloaded.DeleteToken(info.ID))

	list, err := reloaded.ListTokens()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("a"), HashToken("a"))
	assert.NotEqual(t, HashToken("a"), HashToken("b"))
	assert.Len(t, HashToken("a"), 64)
}
