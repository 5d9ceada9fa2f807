package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/calweather/internal/oauth"
	"github.com/teemow/calweather/internal/session"
	"github.com/teemow/calweather/internal/store"
)

const testBaseURL = "http://localhost:8000"

// newFakeGoogle serves the token and userinfo endpoints for user u1.
func newFakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "abc" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"u1","email":"e@x.com","name":"E X"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	sc       *ServerContext
	store    *store.MemoryStore
	sessions *session.Manager
	flow     *oauth.FlowManager
	handler  http.Handler
}

func newTestEnv(t *testing.T, withGoogle bool) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	sessions, err := session.NewManager(session.Config{SigningKey: []byte("0123456789abcdef0123456789abcdef")}, st)
	require.NoError(t, err)

	cfg := Config{BaseURL: testBaseURL, Store: st, Sessions: sessions}
	var flow *oauth.FlowManager
	if withGoogle {
		g := newFakeGoogle(t)
		cache := oauth.NewMemoryChallengeCache(0, nil)
		t.Cleanup(cache.Stop)
		flow = oauth.NewFlowManager(oauth.FlowConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  testBaseURL + "/auth/callback",
			Scopes:       []string{"openid", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://accounts.example.com/auth",
				TokenURL:  g.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			UserInfoURL: g.URL + "/userinfo",
		}, cache, st, oauth.WithHTTPClient(g.Client()))
		cfg.Flow = flow
	}

	sc, err := NewServerContext(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	mcpSrv := mcpserver.NewMCPServer("calweather-test", "test", mcpserver.WithToolCapabilities(true))
	srv, err := NewHTTPServer(sc, mcpSrv, HTTPConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	return &testEnv{sc: sc, store: st, sessions: sessions, flow: flow, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, target, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// startLogin runs /auth/start and returns the state from the consent URL.
func (e *testEnv) startLogin(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/auth/start", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
