package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestIDRoundTrip(t *testing.T, incoming string) (header string, inContext string) {
	t.Helper()
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/menu", nil)
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Header().Get("X-Request-ID"), inContext
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	header, inContext := requestIDRoundTrip(t, "")

	require.NotEmpty(t, header)
	assert.Equal(t, header, inContext)
	_, err := uuid.Parse(header)
	assert.NoError(t, err)
}

func TestRequestID_UpstreamIDKept(t *testing.T) {
	header, inContext := requestIDRoundTrip(t, "proxy-7f3a")

	assert.Equal(t, "proxy-7f3a", header)
	assert.Equal(t, "proxy-7f3a", inContext)
}

func TestRequestID_UnusableIDReplaced(t *testing.T) {
	for _, bad := range []string{"\x01binary", strings.Repeat("x", 129)} {
		header, _ := requestIDRoundTrip(t, bad)
		assert.NotEqual(t, bad, header)
		_, err := uuid.Parse(header)
		assert.NoError(t, err)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
