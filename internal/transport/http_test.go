package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/fault"
)

// countingTokens hands out tokens in order and records refresh requests.
type countingTokens struct {
	tokens    []string
	refreshes int
	calls     int
}

func (c *countingTokens) Token(_ context.Context, refresh bool) (string, error) {
	if refresh {
		c.refreshes++
	}
	t := c.tokens[c.calls]
	if c.calls < len(c.tokens)-1 {
		c.calls++
	}
	return t, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestHTTP_GetSendsBearerAndResolves(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uri":"../wallets/1/"}`))
	}))
	defer srv.Close()

	h := NewHTTP(StaticToken("opaque-token"))
	resp, err := h.Get(context.Background(), srv.URL+"/creditors/1/wallet")
	require.NoError(t, err)

	assert.Equal(t, "Bearer opaque-token", gotAuth)
	assert.Equal(t, http.StatusOK, resp.Status)

	var body struct {
		URI string `json:"uri"`
	}
	require.NoError(t, resp.Decode(&body))
	abs, err := resp.Resolve(body.URI)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/wallets/1/", abs)
}

func TestHTTP_PostEncodesBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	h := NewHTTP(StaticToken("t"))
	resp, err := h.Post(context.Background(), srv.URL+"/transfers/", map[string]any{"amount": 5})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, float64(5), got["amount"])
}

func TestHTTP_StatusErrors(t *testing.T) {
	status := http.StatusConflict
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	h := NewHTTP(StaticToken("t"))

	_, err := h.Patch(context.Background(), srv.URL+"/config", map[string]any{})
	assert.Equal(t, fault.KindHTTP, fault.KindOf(err))
	assert.Equal(t, http.StatusConflict, fault.StatusOf(err))

	status = http.StatusUnauthorized
	_, err = h.Get(context.Background(), srv.URL+"/config")
	assert.Equal(t, fault.KindAuthentication, fault.KindOf(err))
}

func TestHTTP_NetworkFailureIsServerSession(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := NewHTTP(StaticToken("t"))
	_, err := h.Get(context.Background(), url+"/wallet")
	assert.Equal(t, fault.KindServerSession, fault.KindOf(err))
}

func TestHTTP_ExpiredTokenRefreshedWhenLoginAllowed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Minute))
	fresh := signedToken(t, now.Add(time.Hour))

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &countingTokens{tokens: []string{expired, fresh}}
	h := NewHTTP(tokens, WithNow(func() time.Time { return now }))

	_, err := h.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+fresh, gotAuth)
	assert.Equal(t, 1, tokens.refreshes)
}

func TestHTTP_ExpiredTokenWithoutLogin(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Minute))

	h := NewHTTP(StaticToken(expired), WithNow(func() time.Time { return now }))
	_, err := h.Get(context.Background(), "http://127.0.0.1:1/unused", WithAttemptLogin(false))
	assert.Equal(t, fault.KindAuthentication, fault.KindOf(err))
}

func TestApply_Defaults(t *testing.T) {
	o := Apply(nil)
	assert.True(t, o.AttemptLogin)
	assert.Zero(t, o.Timeout)

	o = Apply([]Option{WithTimeout(time.Second), WithAttemptLogin(false)})
	assert.False(t, o.AttemptLogin)
	assert.Equal(t, time.Second, o.Timeout)
}
