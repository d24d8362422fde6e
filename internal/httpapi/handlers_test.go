package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"intercom-platform/internal/audit"
	"intercom-platform/internal/auth"
	"intercom-platform/internal/config"
	"intercom-platform/internal/privatecall"
	"intercom-platform/internal/rbac"
	"intercom-platform/internal/users"
)

type apiFixture struct {
	router   *gin.Engine
	tokens   *auth.Manager
	calls    *privatecall.Service
	presence *privatecall.MemoryPresence
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret-test-secret-test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	hash, err := users.HashPassword("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	userRepo := users.NewMemoryRepo(
		users.User{ID: 1, Username: "alice", Role: rbac.RoleOperator, PasswordHash: hash},
		users.User{ID: 2, Username: "bob", Role: rbac.RoleOperator, PasswordHash: hash},
		users.User{ID: 9, Username: "root", Role: rbac.RoleAdmin, PasswordHash: hash},
	)

	presence := privatecall.NewMemoryPresence()
	calls := privatecall.NewService(
		privatecall.NewMemoryRepo(),
		presence,
		privatecall.NewMemorySlotLimiter(),
		audit.NewService(audit.NewMemoryRepo()),
	)

	h := Handlers{
		Auth:  mgr,
		Users: users.NewService(userRepo, mgr),
		Calls: calls,
	}

	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)

	pc := r.Group("/private-call", auth.RequireAccessToken(mgr))
	pc.POST("/invite", h.SendInvitation)
	pc.GET("/incoming/:userId", h.IncomingCalls)
	pc.POST("/accept/:invitationId", h.AcceptInvitation)
	pc.POST("/reject/:invitationId", h.RejectInvitation)
	pc.POST("/cancel/:invitationId", h.CancelInvitation)
	pc.GET("/status/:invitationId/:userId", h.InvitationStatus)
	pc.POST("/end/:invitationId", h.EndCall)
	pc.GET("/stats/:userId", h.CallStats)
	pc.POST("/cleanup", rbac.RequireAnyRole(rbac.RoleAdmin), h.CleanupInvitations)

	return &apiFixture{router: r, tokens: mgr, calls: calls, presence: presence}
}

func (f *apiFixture) token(t *testing.T, userID int, username, role string) string {
	t.Helper()
	pair, err := f.tokens.IssuePair(time.Now(), userID, username, role)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return pair.AccessToken
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestLoginAndRefresh(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login code = %d body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	refresh, _ := body["refreshToken"].(string)
	if refresh == "" || body["accessToken"] == "" {
		t.Fatalf("missing tokens in %v", body)
	}

	w = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh code = %d body = %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login code = %d", w.Code)
	}
}

func TestInviteFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.token(t, 1, "alice", rbac.RoleOperator)
	bob := f.token(t, 2, "bob", rbac.RoleOperator)

	// Bob polls, which marks him reachable.
	if w := f.do(t, http.MethodGet, "/private-call/incoming/2", bob, nil); w.Code != http.StatusOK {
		t.Fatalf("incoming code = %d", w.Code)
	}

	w := f.do(t, http.MethodPost, "/private-call/invite", alice, map[string]int{"receiverId": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite code = %d body = %s", w.Code, w.Body.String())
	}
	inv := decode(t, w)["invitation"].(map[string]any)
	id := inv["invitationId"].(string)
	if inv["channelName"] != "private_1_2" {
		t.Fatalf("channelName = %v", inv["channelName"])
	}

	// Bob sees the call and accepts it.
	w = f.do(t, http.MethodGet, "/private-call/incoming/2", bob, nil)
	if got := decode(t, w)["incomingCalls"].([]any); len(got) != 1 {
		t.Fatalf("incomingCalls = %v", got)
	}
	w = f.do(t, http.MethodPost, "/private-call/accept/"+id, bob, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept code = %d body = %s", w.Code, w.Body.String())
	}

	// Alice's poll observes accepted.
	w = f.do(t, http.MethodGet, fmt.Sprintf("/private-call/status/%s/1", id), alice, nil)
	if got := decode(t, w)["status"]; got != "accepted" {
		t.Fatalf("status = %v", got)
	}

	// Late cancel loses to the accept.
	w = f.do(t, http.MethodPost, "/private-call/cancel/"+id, alice, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel code = %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/private-call/end/"+id, alice, map[string]string{"reason": "user_hangup"})
	if w.Code != http.StatusOK {
		t.Fatalf("end code = %d body = %s", w.Code, w.Body.String())
	}
}

func TestInviteRequiresOnlineReceiver(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.token(t, 1, "alice", rbac.RoleOperator)

	w := f.do(t, http.MethodPost, "/private-call/invite", alice, map[string]int{"receiverId": 2})
	if w.Code != http.StatusConflict {
		t.Fatalf("invite code = %d body = %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["success"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestIncomingRejectsOtherUsers(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.token(t, 1, "alice", rbac.RoleOperator)
	root := f.token(t, 9, "root", rbac.RoleAdmin)

	if w := f.do(t, http.MethodGet, "/private-call/incoming/2", alice, nil); w.Code != http.StatusForbidden {
		t.Fatalf("cross-user code = %d", w.Code)
	}
	// Admin may read on behalf of others.
	if w := f.do(t, http.MethodGet, "/private-call/incoming/2", root, nil); w.Code != http.StatusOK {
		t.Fatalf("admin code = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/private-call/incoming/2", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anon code = %d", w.Code)
	}
}

func TestCleanupRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.token(t, 1, "alice", rbac.RoleOperator)
	root := f.token(t, 9, "root", rbac.RoleAdmin)

	if w := f.do(t, http.MethodPost, "/private-call/cleanup", alice, nil); w.Code != http.StatusForbidden {
		t.Fatalf("operator cleanup code = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/private-call/cleanup", root, nil); w.Code != http.StatusOK {
		t.Fatalf("admin cleanup code = %d body = %s", w.Code, w.Body.String())
	}
}
