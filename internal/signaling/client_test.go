package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

func TestChannelNameMatchesServerFormula(t *testing.T) {
	if got := ChannelName(42, 7); got != "private_7_42" {
		t.Fatalf("ChannelName = %q", got)
	}
	if ChannelName(7, 42) != ChannelName(42, 7) {
		t.Fatalf("channel name depends on argument order")
	}
}

func TestInviteDecodesInvitation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/private-call/invite" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"invitation": map[string]any{
				"invitationId": "inv-1",
				"callerId":     1,
				"receiverId":   2,
				"channelName":  "private_1_2",
				"status":       "pending",
			},
		})
	})
	c.SetToken("tok")

	inv, err := c.Invite(context.Background(), 2)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.ID != "inv-1" || inv.ChannelName != "private_1_2" || inv.Status != StatusPending {
		t.Fatalf("invitation = %+v", inv)
	}
}

func TestServerRejectionCarriesMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "receiver unavailable"})
	})

	_, err := c.Invite(context.Background(), 2)
	var rej *ServerRejected
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want ServerRejected", err)
	}
	if rej.StatusCode != http.StatusConflict || rej.Message != "receiver unavailable" {
		t.Fatalf("rejection = %+v", rej)
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.Status(context.Background(), "inv-1", 1)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

func TestLoginInstallsToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accessToken":  "access-1",
				"refreshToken": "refresh-1",
				"user":         map[string]any{"id": 5, "username": "agent"},
			})
		case "/private-call/incoming/5":
			if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
				t.Errorf("authorization = %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "incomingCalls": []any{}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sess, err := c.Login(context.Background(), "agent", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.User.ID != 5 {
		t.Fatalf("session = %+v", sess)
	}
	if _, err := c.Incoming(context.Background(), 5); err != nil {
		t.Fatalf("incoming: %v", err)
	}
}
