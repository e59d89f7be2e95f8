package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/internal/launcher/store/drivers/sqlite"
	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv     *httptest.Server
	router  *Router
	gateway *ws.Gateway
	users   *service.UserService
	tokens  *service.TokenService
	codes   *service.LaunchCodeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	kvStore := kv.NewMemoryStore()

	issuer := "launcherd-test"
	audience := []string{"launcherd-clients"}
	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), issuer, audience)
	require.NoError(t, err)

	users := service.NewUserService(st.Users(), log)
	tokens := service.NewTokenService(signer, kvStore, log, issuer, audience, 15*time.Minute, 30*24*time.Hour)
	codes, err := service.NewLaunchCodeService(kvStore, log, service.LaunchCodeConfig{
		TTL:       60 * time.Second,
		CodeBytes: 32,
		URIScheme: "svlauncher",
	})
	require.NoError(t, err)
	blocklist := service.NewBlocklistService(kvStore, log)
	games := service.NewGameService(st.Games(), log)

	creds := ws.NewCredStore()
	gateway := ws.NewGateway(ws.NewRegistry(), ws.NewAliasIndex(), creds, log)
	t.Cleanup(gateway.Stop)

	r := NewRouter(signer, "test", st, kvStore, log)
	r.UserService = users
	r.TokenService = tokens
	r.LaunchCodeService = codes
	r.BlocklistService = blocklist
	r.GameService = games
	r.Gateway = gateway
	r.Creds = creds
	r.ExchangeCredTTL = 60 * time.Second
	r.ApplyRoutes()

	require.NoError(t, service.SeedDefaults(context.Background(), st, log))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, router: r, gateway: gateway, users: users, tokens: tokens, codes: codes}
}

func (e *testEnv) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.postJSON(t, "/v1/auth/login", "", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decodeBody[service.IssuedToken](t, resp)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func (e *testEnv) dialSocket(t *testing.T, cred string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/socket?cred=" + cred
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	resp := e.postJSON(t, "/v1/auth/login", "", map[string]string{
		"username": "dev", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.Equal(t, "invalid_credentials", body["error"])
}

func TestRunRequiresAuth(t *testing.T) {
	e := newTestEnv(t)

	resp := e.postJSON(t, "/v1/launcher/run", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLaunchCodeExchangeIsSingleUse(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dev", "dev")

	resp := e.postJSON(t, "/v1/launcher/run", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued := decodeBody[struct {
		Code      string `json:"code"`
		LaunchURI string `json:"launchUri"`
		ExpiresIn int64  `json:"expiresIn"`
	}](t, resp)
	require.NotEmpty(t, issued.Code)
	require.True(t, strings.HasPrefix(issued.LaunchURI, "svlauncher://auth?code="))
	require.EqualValues(t, 60, issued.ExpiresIn)

	// First exchange wins and yields a launcher-scoped device token.
	resp = e.postJSON(t, "/v1/launcher/auth", "", map[string]string{"code": issued.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	device := decodeBody[service.IssuedToken](t, resp)
	require.NotEmpty(t, device.AccessToken)
	require.NotEmpty(t, device.SessionID)

	claims, err := e.router.verifier.Verify(device.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"Dev"}, claims.Roles)
	require.Equal(t, service.ScopeLauncher, claims.Scope)

	// Second exchange of the same code is rejected.
	resp = e.postJSON(t, "/v1/launcher/auth", "", map[string]string{"code": issued.Code})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.Equal(t, "invalid_or_expired_code", body["error"])
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dev", "dev")

	resp := e.postJSON(t, "/v1/launcher/run", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.postJSON(t, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// The same token no longer works anywhere.
	resp = e.postJSON(t, "/v1/launcher/run", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSocketAndCommandDispatch(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "dev", "dev")

	resp := e.postJSON(t, "/v1/launcher/run", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued := decodeBody[struct {
		Code string `json:"code"`
	}](t, resp)

	resp = e.postJSON(t, "/v1/launcher/auth", "", map[string]string{"code": issued.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	conn := e.dialSocket(t, issued.Code)
	var hello ws.ServerHello
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "hello", hello.T)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"t": "hello", "instanceId": "inst-a", "deviceId": "dev-a",
	}))

	// Presence shows up for the owning user.
	require.Eventually(t, func() bool {
		resp := e.get(t, "/v1/launcher/sessions", token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var body sessionsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return len(body.Sessions) == 1 && body.Sessions[0].InstanceID == "inst-a"
	}, 2*time.Second, 20*time.Millisecond)

	// Dispatch by launch code reaches the connected session.
	resp = e.postJSON(t, "/v1/launcher/commands", token, map[string]any{
		"code": issued.Code,
		"type": "launch",
		"payload": map[string]string{
			"gameId": "g1",
		},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	result := decodeBody[commandResponse](t, resp)
	require.Equal(t, []string{hello.WSSessionID}, result.Delivered)
	require.NotNil(t, result.CommandID)
	require.Empty(t, result.Error)

	var cmd ws.ServerCommand
	require.NoError(t, conn.ReadJSON(&cmd))
	require.Equal(t, "launch", cmd.Type)
	require.JSONEq(t, `{"gameId":"g1"}`, string(cmd.Payload))

	// Dispatch at a code with no live session reports the miss.
	resp = e.postJSON(t, "/v1/launcher/commands", token, map[string]any{
		"code": "no-such-code",
		"type": "launch",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	result = decodeBody[commandResponse](t, resp)
	require.Empty(t, result.Delivered)
	require.Nil(t, result.CommandID)
	require.Equal(t, "no_live_session_for_code", result.Error)
}

func TestCommandsRequireElevatedRole(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "user", "user")

	resp := e.postJSON(t, "/v1/launcher/commands", token, map[string]any{"type": "launch"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.get(t, "/v1/launcher/sessions", token)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestGameLicenseLookup(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "user", "user")

	st := e.router.store
	g, err := st.Games().GetGameByName(context.Background(), "PluginEnvironment")
	require.NoError(t, err)

	resp := e.postJSON(t, "/v1/game/license", token, map[string]string{
		"id": g.ID, "name": g.Name,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[licenseResponse](t, resp)
	require.Equal(t, g.License, body.GameLicense)
	require.Equal(t, "User", body.UserRole)

	resp = e.postJSON(t, "/v1/game/license", token, map[string]string{
		"id": g.ID, "name": "WrongName",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errBody := decodeBody[map[string]string](t, resp)
	require.Equal(t, "game_not_found", errBody["error"])
}

func TestUserCreationIsAdminOnly(t *testing.T) {
	e := newTestEnv(t)

	devToken := e.login(t, "dev", "dev")
	resp := e.postJSON(t, "/v1/users", devToken, map[string]string{
		"username": "newbie", "password": "password1", "role": "User",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	adminToken := e.login(t, "admin", "admin")
	resp = e.postJSON(t, "/v1/users", adminToken, map[string]string{
		"username": "newbie", "password": "password1", "role": "User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[createUserResponse](t, resp)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "newbie", created.Username)

	resp = e.postJSON(t, "/v1/users", adminToken, map[string]string{
		"username": "newbie", "password": "password1", "role": "User",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decodeBody[map[string]string](t, resp)
	require.Equal(t, "username_taken", errBody["error"])
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	resp := e.get(t, "/livez", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	live := decodeBody[healthResponse](t, resp)
	require.Equal(t, "ok", live.Status)

	resp = e.get(t, "/readyz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decodeBody[readyzResponse](t, resp)
	require.Equal(t, "ok", ready.Checks["database"])
	require.Equal(t, "ok", ready.Checks["kv"])
}
