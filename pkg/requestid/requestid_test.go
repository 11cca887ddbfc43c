package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/kiosk/pkg/requestid"
)

func serve(t *testing.T, header string) (ctxID, respID string) {
	t.Helper()

	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/check-ins", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates an id when none is sent", func(t *testing.T) {
		t.Parallel()

		ctxID, respID := serve(t, "")
		assert.Equal(t, ctxID, respID)
		_, err := uuid.Parse(ctxID)
		assert.NoError(t, err)
	})

	t.Run("reuses a valid client id", func(t *testing.T) {
		t.Parallel()

		ctxID, respID := serve(t, "kiosk-3_retry-1")
		assert.Equal(t, "kiosk-3_retry-1", ctxID)
		assert.Equal(t, ctxID, respID)
	})

	t.Run("replaces invalid client ids", func(t *testing.T) {
		t.Parallel()

		for _, bad := range []string{"has space", "semi;colon", strings.Repeat("a", 129)} {
			ctxID, respID := serve(t, bad)
			assert.NotEqual(t, bad, ctxID)
			assert.Equal(t, ctxID, respID)
		}
	})
}

func TestContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))

	ctx := requestid.WithContext(context.Background(), "abc")
	assert.Equal(t, "abc", requestid.FromContext(ctx))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := requestid.LoggerExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	attr, ok := extract(requestid.WithContext(context.Background(), "abc"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.String())
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, requestid.Valid(requestid.New()))
	assert.True(t, requestid.Valid("A_b-9"))
	assert.False(t, requestid.Valid(""))
	assert.False(t, requestid.Valid("a/b"))
}
