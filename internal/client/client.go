// ABOUTME: HTTP client for the sigil-gateway authentication API
// ABOUTME: Registers principals, fetches challenges, and logs in with locally signed nonces

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2389/sigil/internal/auth"
)

// Registration is the gateway's answer to register and enroll. SecretKey is
// set only for server-side registration.
type Registration struct {
	PrincipalID string    `json:"principal_id"`
	Scheme      string    `json:"scheme"`
	PublicKey   []byte    `json:"public_key"`
	SecretKey   []byte    `json:"secret_key,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// Challenge is a nonce issued by the gateway.
type Challenge struct {
	PrincipalID string    `json:"principal_id"`
	ChallengeID string    `json:"challenge_id"`
	Nonce       []byte    `json:"challenge"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Session is the gateway's answer to a successful login.
type Session struct {
	Message     string     `json:"message"`
	PrincipalID string     `json:"principal_id"`
	Token       string     `json:"token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SessionInfo describes a live session token.
type SessionInfo struct {
	PrincipalID string    `json:"principal_id"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// APIError is a non-2xx gateway response. It unwraps to the matching auth
// error so callers can use errors.Is(err, auth.ErrInvalidSignature).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the response onto the auth error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusConflict:
		return auth.ErrPrincipalAlreadyExists
	case e.StatusCode == http.StatusNotFound:
		return auth.ErrPrincipalNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return auth.ErrRateLimited
	case e.StatusCode == http.StatusBadRequest && e.Message == "no outstanding challenge":
		return auth.ErrNoOutstandingChallenge
	case e.StatusCode == http.StatusBadRequest:
		return auth.ErrInvalidInput
	case e.StatusCode == http.StatusUnauthorized && e.Message == "invalid signature":
		return auth.ErrInvalidSignature
	case e.StatusCode == http.StatusUnauthorized && e.Message == "session revoked":
		return auth.ErrSessionRevoked
	case e.StatusCode == http.StatusUnauthorized:
		return auth.ErrInvalidToken
	case e.StatusCode == http.StatusServiceUnavailable:
		return auth.ErrRevocationUnavailable
	default:
		return nil
	}
}

// Client talks to a sigil-gateway over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the gateway at baseURL. A nil httpClient uses a
// client with a 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
	}
}

// Scheme fetches the gateway's signature scheme and its public parameters.
func (c *Client) Scheme(ctx context.Context) (*SchemeInfo, error) {
	var info SchemeInfo
	if err := c.do(ctx, http.MethodGet, "/api/scheme", "", nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Register asks the gateway to generate a key pair for principalID. The
// returned secret key is the caller's to keep; the gateway forgets it.
func (c *Client) Register(ctx context.Context, principalID string) (*Registration, error) {
	var reg Registration
	body := map[string]string{"principal_id": principalID}
	if err := c.do(ctx, http.MethodPost, "/api/register", "", body, http.StatusCreated, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Enroll registers a public key generated locally.
func (c *Client) Enroll(ctx context.Context, principalID string, publicKey []byte) (*Registration, error) {
	var reg Registration
	body := map[string]any{"principal_id": principalID, "public_key": publicKey}
	if err := c.do(ctx, http.MethodPost, "/api/enroll", "", body, http.StatusCreated, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Challenge requests a fresh nonce for principalID.
func (c *Client) Challenge(ctx context.Context, principalID string) (*Challenge, error) {
	var ch Challenge
	path := "/api/challenge?principal_id=" + url.QueryEscape(principalID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, http.StatusOK, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Login submits a signature over the outstanding challenge.
func (c *Client) Login(ctx context.Context, principalID string, signature []byte) (*Session, error) {
	var s Session
	body := map[string]any{"principal_id": principalID, "signature": signature}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Authenticate runs challenge and login, signing the nonce with key.
func (c *Client) Authenticate(ctx context.Context, key *Key) (*Session, error) {
	ch, err := c.Challenge(ctx, key.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("requesting challenge: %w", err)
	}
	sig, err := key.Sign(ch.Nonce)
	if err != nil {
		return nil, fmt.Errorf("signing challenge: %w", err)
	}
	session, err := c.Login(ctx, key.PrincipalID, sig)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return session, nil
}

// Principal fetches the public record of principalID.
func (c *Client) Principal(ctx context.Context, principalID string) (*Registration, error) {
	var reg Registration
	path := "/api/principals/" + url.PathEscape(principalID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, http.StatusOK, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Principals lists every registered principal.
func (c *Client) Principals(ctx context.Context) ([]Registration, error) {
	var regs []Registration
	if err := c.do(ctx, http.MethodGet, "/api/principals", "", nil, http.StatusOK, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// Session describes the session behind token.
func (c *Client) Session(ctx context.Context, token string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/session", token, nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout revokes token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/logout", token, nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// handleErrorResponse extracts the error message from a non-success response.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
