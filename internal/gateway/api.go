// ABOUTME: HTTP API handlers for register, challenge, and login
// ABOUTME: Binary fields travel as base64 strings inside JSON bodies

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/sigil/internal/auth"
	"github.com/2389/sigil/internal/lattice"
	"github.com/2389/sigil/internal/store"
)

// maxRequestBody bounds JSON request bodies. Dilithium3 public keys and
// signatures are under 4KB before base64.
const maxRequestBody = 64 << 10

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	PrincipalID string `json:"principal_id"`
}

// EnrollRequest is the JSON request body for POST /api/enroll.
type EnrollRequest struct {
	PrincipalID string `json:"principal_id"`
	PublicKey   []byte `json:"public_key"`
}

// PrincipalResponse is the public view of a principal.
type PrincipalResponse struct {
	PrincipalID string    `json:"principal_id"`
	Scheme      string    `json:"scheme"`
	PublicKey   []byte    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// RegisterResponse is the JSON response for POST /api/register. SecretKey is
// present only here, once; the gateway does not keep it.
type RegisterResponse struct {
	PrincipalID string `json:"principal_id"`
	Scheme      string `json:"scheme"`
	PublicKey   []byte `json:"public_key"`
	SecretKey   []byte `json:"secret_key,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// ChallengeResponse is the JSON response for GET /api/challenge.
type ChallengeResponse struct {
	PrincipalID string    `json:"principal_id"`
	ChallengeID string    `json:"challenge_id"`
	Challenge   []byte    `json:"challenge"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	PrincipalID string `json:"principal_id"`
	Signature   []byte `json:"signature"`
}

// LoginResponse is the JSON response for POST /api/login.
type LoginResponse struct {
	Message     string     `json:"message"`
	PrincipalID string     `json:"principal_id"`
	Token       string     `json:"token,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SessionResponse is the JSON response for GET /api/session.
type SessionResponse struct {
	PrincipalID string    `json:"principal_id"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SchemeResponse is the JSON response for GET /api/scheme. Toy is set only
// for the toy scheme, whose public matrix clients need in order to sign.
type SchemeResponse struct {
	Name          string             `json:"name"`
	PublicKeySize int                `json:"public_key_size"`
	Toy           *ToySchemeResponse `json:"toy,omitempty"`
}

// ToySchemeResponse carries the public toy parameters.
type ToySchemeResponse struct {
	Q      uint32         `json:"q"`
	Matrix lattice.Matrix `json:"matrix"`
	Low    int64          `json:"low"`
	High   int64          `json:"high"`
	Digest string         `json:"digest"`
}

// registerAPIRoutes mounts the authentication API on mux.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/scheme", g.handleScheme)
	mux.HandleFunc("/api/register", g.handleRegister)
	mux.HandleFunc("/api/enroll", g.handleEnroll)
	mux.HandleFunc("/api/challenge", g.handleChallenge)
	mux.HandleFunc("/api/login", g.handleLogin)
	mux.HandleFunc("/api/principals", g.handleListPrincipals)
	mux.HandleFunc("/api/principals/", g.handleGetPrincipal)

	sessions := auth.SessionMiddleware(g.service)
	mux.Handle("/api/session", sessions(http.HandlerFunc(g.handleSession)))
	mux.Handle("/api/logout", sessions(http.HandlerFunc(g.handleLogout)))
}

// handleScheme handles GET /api/scheme.
func (g *Gateway) handleScheme(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	scheme := g.service.Scheme()
	resp := SchemeResponse{
		Name:          scheme.Name(),
		PublicKeySize: scheme.PublicKeySize(),
	}
	if toy, ok := scheme.(*lattice.ToyScheme); ok {
		low, high := toy.CoefficientRange()
		resp.Toy = &ToySchemeResponse{
			Q:      toy.Modulus(),
			Matrix: toy.Matrix(),
			Low:    low,
			High:   high,
			Digest: g.config.Scheme.Toy.Digest,
		}
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleRegister handles POST /api/register.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	kp, err := g.service.Register(r.Context(), req.PrincipalID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.writeJSON(w, http.StatusCreated, RegisterResponse{
		PrincipalID: req.PrincipalID,
		Scheme:      g.service.Scheme().Name(),
		PublicKey:   kp.PublicKey,
		SecretKey:   kp.SecretKey,
		Fingerprint: store.Fingerprint(kp.PublicKey),
	})
}

// handleEnroll handles POST /api/enroll for key pairs generated client-side.
func (g *Gateway) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := g.service.Enroll(r.Context(), req.PrincipalID, req.PublicKey)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.writeJSON(w, http.StatusCreated, principalResponse(p))
}

// handleChallenge handles GET /api/challenge?principal_id=...
func (g *Gateway) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	principalID := r.URL.Query().Get("principal_id")
	c, err := g.service.Challenge(r.Context(), principalID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.writeJSON(w, http.StatusOK, ChallengeResponse{
		PrincipalID: c.Owner,
		ChallengeID: c.ID,
		Challenge:   c.Nonce,
		ExpiresAt:   c.ExpiresAt,
	})
}

// handleLogin handles POST /api/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Signature) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "signature is required")
		return
	}

	session, err := g.service.Login(r.Context(), req.PrincipalID, req.Signature)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := LoginResponse{
		Message:     "login successful",
		PrincipalID: session.PrincipalID,
		Token:       session.Token,
	}
	if !session.ExpiresAt.IsZero() {
		resp.ExpiresAt = &session.ExpiresAt
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleListPrincipals handles GET /api/principals.
func (g *Gateway) handleListPrincipals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	principals, err := g.store.ListPrincipals(r.Context())
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := make([]PrincipalResponse, 0, len(principals))
	for _, p := range principals {
		resp = append(resp, principalResponse(p))
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleGetPrincipal handles GET /api/principals/{id}.
func (g *Gateway) handleGetPrincipal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/principals/")
	if id == "" || strings.Contains(id, "/") {
		g.sendJSONError(w, http.StatusNotFound, "principal not found")
		return
	}

	p, err := g.service.Principal(r.Context(), id)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.writeJSON(w, http.StatusOK, principalResponse(p))
}

// handleSession handles GET /api/session behind SessionMiddleware.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ac := auth.MustFromContext(r.Context())
	g.writeJSON(w, http.StatusOK, SessionResponse{
		PrincipalID: ac.PrincipalID,
		SessionID:   ac.SessionID,
		ExpiresAt:   ac.ExpiresAt,
	})
}

// handleLogout handles POST /api/logout behind SessionMiddleware.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := g.service.Logout(token); err != nil {
		g.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func principalResponse(p *store.Principal) PrincipalResponse {
	return PrincipalResponse{
		PrincipalID: p.ID,
		Scheme:      p.Scheme,
		PublicKey:   p.PublicKey,
		Fingerprint: p.Fingerprint,
		CreatedAt:   p.CreatedAt,
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

// statusForError maps service errors onto HTTP status codes and client messages.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrPrincipalAlreadyExists):
		return http.StatusConflict, "principal already exists"
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return http.StatusNotFound, "principal not found"
	case errors.Is(err, auth.ErrNoOutstandingChallenge):
		return http.StatusBadRequest, "no outstanding challenge"
	case errors.Is(err, auth.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, auth.ErrSessionRevoked):
		return http.StatusUnauthorized, "session revoked"
	case errors.Is(err, auth.ErrRevocationUnavailable):
		return http.StatusServiceUnavailable, "session revocation unavailable"
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingClaim):
		return http.StatusUnauthorized, "invalid token"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// sendServiceError writes the JSON error for a service failure, logging
// anything unexpected.
func (g *Gateway) sendServiceError(w http.ResponseWriter, err error) {
	status, msg := statusForError(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("request failed", "error", err)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	g.sendJSONError(w, status, msg)
}

// sendJSONError writes a JSON error response with the given status code and message.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}
