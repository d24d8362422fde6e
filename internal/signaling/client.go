package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// StatusSource is the read side of the signaling protocol. The call
// state machines depend on this rather than on Client directly, so a
// push-based transport could be substituted without touching them.
type StatusSource interface {
	Status(ctx context.Context, invitationID string, userID int) (Invitation, error)
	Incoming(ctx context.Context, userID int) ([]Invitation, error)
}

// Client is a thin wrapper over the private-call REST endpoints.
// Methods return *NetworkError when the request never got a verdict and
// *ServerRejected when the server refused; callers pick their policy
// per operation.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu    sync.Mutex
	token string
}

// ClientConfig controls HTTP client behavior.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	return out
}

func NewClient(cfg ClientConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("signaling: base url is required")
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login authenticates and installs the returned access token on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var out Session
	err := c.do(ctx, "login", http.MethodPost, "/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// Invite asks the server to create a pending invitation to receiverID.
func (c *Client) Invite(ctx context.Context, receiverID int) (Invitation, error) {
	var out struct {
		Invitation Invitation `json:"invitation"`
	}
	err := c.do(ctx, "invite", http.MethodPost, "/private-call/invite",
		map[string]int{"receiverId": receiverID}, &out)
	if err != nil {
		return Invitation{}, err
	}
	return out.Invitation, nil
}

func (c *Client) Accept(ctx context.Context, invitationID string) error {
	return c.do(ctx, "accept", http.MethodPost, "/private-call/accept/"+invitationID, nil, nil)
}

func (c *Client) Reject(ctx context.Context, invitationID string) error {
	return c.do(ctx, "reject", http.MethodPost, "/private-call/reject/"+invitationID, nil, nil)
}

func (c *Client) Cancel(ctx context.Context, invitationID string) error {
	return c.do(ctx, "cancel", http.MethodPost, "/private-call/cancel/"+invitationID, nil, nil)
}

// End reports the voice-connected phase over. reason is free-form.
func (c *Client) End(ctx context.Context, invitationID, reason string) error {
	return c.do(ctx, "end", http.MethodPost, "/private-call/end/"+invitationID,
		map[string]string{"reason": reason}, nil)
}

// Status fetches the server's current view of an invitation.
func (c *Client) Status(ctx context.Context, invitationID string, userID int) (Invitation, error) {
	var out struct {
		Invitation Invitation `json:"invitation"`
	}
	path := fmt.Sprintf("/private-call/status/%s/%d", invitationID, userID)
	if err := c.do(ctx, "status", http.MethodGet, path, nil, &out); err != nil {
		return Invitation{}, err
	}
	return out.Invitation, nil
}

// Incoming lists pending invitations addressed to userID.
func (c *Client) Incoming(ctx context.Context, userID int) ([]Invitation, error) {
	var out struct {
		IncomingCalls []Invitation `json:"incomingCalls"`
	}
	path := fmt.Sprintf("/private-call/incoming/%d", userID)
	if err := c.do(ctx, "incoming", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.IncomingCalls, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return &NetworkError{Op: op, Err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw := json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if resp.StatusCode >= 300 {
			return &ServerRejected{Op: op, StatusCode: resp.StatusCode}
		}
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode >= 300 {
		var env struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(raw, &env)
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &ServerRejected{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &NetworkError{Op: op, Err: err}
		}
	}
	return nil
}
