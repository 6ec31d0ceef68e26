package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/server"
	"github.com/jrsteele09/go-token-service/token"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/jrsteele09/go-token-service/token/tokenfake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	userID     = "3fa85f64-5717-4562-b3fc-2c963f66afa6"
	role       = "Manager"
	permission = "inventory:write"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newManager(t *testing.T, alg string, options ...token.ManagerOption) *token.Manager {
	t.Helper()
	signer, err := keys.GenerateSigner("primary", alg)
	require.NoError(t, err)
	ring, err := keys.NewRing(signer)
	require.NoError(t, err)
	m, err := token.New(ring, append([]token.ManagerOption{token.WithLogger(zerolog.Nop())}, options...)...)
	require.NoError(t, err)
	return m
}

func get(t *testing.T, h http.Handler, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestRequireAuth(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newManager(t, keys.HS256, token.WithNowFunc(c.Now), token.WithAccessTokenLifetime(time.Minute))
	srv := server.New(m, server.WithLogger(zerolog.Nop()))

	valid, err := m.IssueAccessToken(userID, []string{role}, []string{permission})
	require.NoError(t, err)
	refreshToken, err := m.IssueRefreshToken()
	require.NoError(t, err)
	foreign, err := newManager(t, keys.HS256).IssueAccessToken(userID, nil, nil)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		rec := get(t, srv, server.RouteAPIMe, "Bearer "+valid)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		var me server.MeResponse
		decodeBody(t, rec, &me)
		require.Equal(t, userID, me.UserID)
		require.Equal(t, []string{role}, me.Roles)
		require.Equal(t, []string{permission}, me.Permissions)
		require.NotZero(t, me.ExpiresAt)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		rec := get(t, srv, server.RouteAPIMe, "bearer "+valid)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	rejected := []struct {
		name          string
		authorization string
	}{
		{name: "missing header"},
		{name: "basic scheme", authorization: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", authorization: "Bearer "},
		{name: "garbage", authorization: "Bearer not-a-token"},
		{name: "refresh token", authorization: "Bearer " + refreshToken},
		{name: "foreign key", authorization: "Bearer " + foreign},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, srv, server.RouteAPIMe, tc.authorization)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

			var body map[string]string
			decodeBody(t, rec, &body)
			require.Equal(t, map[string]string{"error": "unauthorized"}, body)
		})
	}

	t.Run("expired token looks like any other failure", func(t *testing.T) {
		c.now = c.now.Add(time.Minute)
		expired := get(t, srv, server.RouteAPIMe, "Bearer "+valid)
		forged := get(t, srv, server.RouteAPIMe, "Bearer "+foreign)

		require.Equal(t, http.StatusUnauthorized, expired.Code)
		require.Equal(t, forged.Code, expired.Code)
		require.Equal(t, forged.Body.String(), expired.Body.String())
	})
}

func TestRequireAuth_ServiceWithoutInspector(t *testing.T) {
	fake := tokenfake.NewFakeService()
	raw, err := fake.IssueAccessToken(userID, []string{role}, nil)
	require.NoError(t, err)

	srv := server.New(struct{ token.Service }{fake}, server.WithLogger(zerolog.Nop()))

	rec := get(t, srv, server.RouteAPIMe, "Bearer "+raw)
	require.Equal(t, http.StatusOK, rec.Code)

	var me server.MeResponse
	decodeBody(t, rec, &me)
	require.Equal(t, userID, me.UserID)
	require.Empty(t, me.Roles, "claims are only known through an Inspector")

	rec = get(t, srv, server.RouteAPIMe, "Bearer unknown")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePermissionAndRole(t *testing.T) {
	fake := tokenfake.NewFakeService()
	srv := server.New(fake, server.WithLogger(zerolog.Nop()))

	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	srv.RegisterRouteHandler("GET /api/inventory", server.ChainMiddleware(ok, srv.RequireAuth(), srv.RequirePermission(permission)))
	srv.RegisterRouteHandler("GET /api/reports", server.ChainMiddleware(ok, srv.RequireAuth(), srv.RequireRole(role)))
	srv.RegisterRouteHandler("GET /api/no-auth", server.ChainMiddleware(ok, srv.RequirePermission(permission)))

	writer := &token.Claims{Permissions: []string{permission}}
	writer.Subject = userID
	fake.Add("writer", writer)

	manager := &token.Claims{Roles: []string{role}}
	manager.Subject = userID
	fake.Add("manager", manager)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"permission granted", "/api/inventory", "writer", http.StatusNoContent},
		{"permission missing", "/api/inventory", "manager", http.StatusForbidden},
		{"role granted", "/api/reports", "manager", http.StatusNoContent},
		{"role missing", "/api/reports", "writer", http.StatusForbidden},
		{"unauthenticated before authorization", "/api/inventory", "nobody", http.StatusUnauthorized},
		{"no claims in context", "/api/no-auth", "writer", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, srv, tc.path, "Bearer "+tc.token)
			require.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("rejected token", func(t *testing.T) {
		fake.Reject("writer", token.ErrExpired)
		rec := get(t, srv, "/api/inventory", "Bearer writer")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestJWKSHandler(t *testing.T) {
	t.Run("asymmetric keys are published", func(t *testing.T) {
		srv := server.New(newManager(t, keys.ES256), server.WithLogger(zerolog.Nop()))
		rec := get(t, srv, server.RouteWellKnownJWKS, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=300")

		var jwks keys.JWKS
		decodeBody(t, rec, &jwks)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "primary", jwks.Keys[0].Kid)
		require.Equal(t, "EC", jwks.Keys[0].Kty)
	})

	t.Run("shared secrets are not", func(t *testing.T) {
		srv := server.New(newManager(t, keys.HS256), server.WithLogger(zerolog.Nop()))
		rec := get(t, srv, server.RouteWellKnownJWKS, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("service without keys", func(t *testing.T) {
		srv := server.New(tokenfake.NewFakeService(), server.WithLogger(zerolog.Nop()))
		rec := get(t, srv, server.RouteWellKnownJWKS, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	refreshTokens := refresh.NewManager(refresh.NewInMemoryRepo())
	m := newManager(t, keys.HS256, token.WithRefreshStore(refreshTokens))
	srv := server.New(m, server.WithLogger(zerolog.Nop()), server.WithRefreshTokens(refreshTokens))

	access, rt, err := m.IssueTokenPair(userID, []string{role}, nil)
	require.NoError(t, err)
	_, otherRT, err := m.IssueTokenPair(userID, nil, nil)
	require.NoError(t, err)

	stored, err := refreshTokens.Get(rt)
	require.NoError(t, err)
	require.Equal(t, userID, stored.UserID)

	req := httptest.NewRequest(http.MethodPost, server.RouteAPILogout, nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, revoked := range []string{rt, otherRT} {
		_, err = refreshTokens.Get(revoked)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	}

	req = httptest.NewRequest(http.MethodPost, server.RouteAPILogout, nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	srv := server.New(tokenfake.NewFakeService(), server.WithLogger(zerolog.Nop()))
	srv.RegisterRouteHandler("GET /boom", server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, srv.APIMiddleware()...))

	rec := get(t, srv, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, "internal_error", body["error"])
}

func TestHealthHandler(t *testing.T) {
	srv := server.New(tokenfake.NewFakeService(), server.WithLogger(zerolog.Nop()), server.WithEnv("DEV"))
	rec := get(t, srv, server.RouteHealth, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

// A standard OAuth2 client sending the token as a bearer credential must be accepted
func TestOAuth2ClientInterop(t *testing.T) {
	m := newManager(t, keys.RS256)
	ts := httptest.NewServer(server.New(m, server.WithLogger(zerolog.Nop())))
	defer ts.Close()

	raw, err := m.IssueAccessToken(userID, []string{role}, []string{permission})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, ts.Client())
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"}))

	resp, err := client.Get(ts.URL + server.RouteAPIMe)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me server.MeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	require.Equal(t, userID, me.UserID)

	resp, err = ts.Client().Get(ts.URL + server.RouteAPIMe)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("WWW-Authenticate"), "Bearer"))
}
