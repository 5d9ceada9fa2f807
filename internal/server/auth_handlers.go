package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/logging"
	"github.com/teemow/calweather/internal/oauth"
	"github.com/teemow/calweather/internal/session"
)

// MCPServerName is the key of this server in generated MCP client configs.
const MCPServerName = "enterprise-calendar-weather"

// MCPServerEntry is one server in an MCP client config.
type MCPServerEntry struct {
	URL       string            `json:"url"`
	Transport string            `json:"transport,omitempty"`
	Headers   map[string]string `json:"headers"`
}

// MCPConfig is the client configuration handed out after login.
type MCPConfig struct {
	MCPServers map[string]MCPServerEntry `json:"mcpServers"`
}

// NewMCPConfig returns a config pointing at baseURL's MCP endpoint and
// authenticating with credential. transport is omitted when empty.
func NewMCPConfig(baseURL, credential, transport string) MCPConfig {
	return MCPConfig{MCPServers: map[string]MCPServerEntry{
		MCPServerName: {
			URL:       strings.TrimRight(baseURL, "/") + MCPEndpointPath,
			Transport: transport,
			Headers:   map[string]string{"Authorization": "Bearer " + credential},
		},
	}}
}

// AuthStartResponse is returned alongside the redirect to the consent page.
type AuthStartResponse struct {
	AuthURL string `json:"auth_url"`
	Message string `json:"message"`
}

// CallbackResponse is returned after a successful login.
type CallbackResponse struct {
	UserEmail    string    `json:"user_email"`
	ExchangeCode string    `json:"exchange_code"`
	MCPConfig    MCPConfig `json:"mcp_config"`
}

// SetupResponse is returned after redeeming an exchange code.
type SetupResponse struct {
	UserEmail string    `json:"user_email"`
	MCPConfig MCPConfig `json:"mcp_config"`
}

// LogoutResponse is returned by the logout endpoint.
type LogoutResponse struct {
	Status string `json:"status"`
}

// AuthHandler serves the browser facing login endpoints.
type AuthHandler struct {
	sc *ServerContext
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sc *ServerContext) *AuthHandler {
	return &AuthHandler{sc: sc}
}

// HandleStart begins a login by redirecting to Google.
func (h *AuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	flow := h.sc.Flow()
	if flow == nil || !flow.Configured() {
		writeJSON(w, http.StatusInternalServerError, oauth.ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "OAuth not configured. Please set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.",
		})
		return
	}

	authURL, err := flow.BeginAuthorization(r.Context())
	if err != nil {
		h.sc.Logger().Error("Failed to begin authorization", logging.Operation("auth.start"), logging.Err(err))
		writeOAuthError(w, oauth.HTTPError(err))
		return
	}

	w.Header().Set("Location", authURL)
	writeJSON(w, http.StatusTemporaryRedirect, AuthStartResponse{
		AuthURL: authURL,
		Message: "Redirect user to auth_url to begin OAuth flow",
	})
}

// HandleCallback completes the login, issues a session and an exchange code
// and returns an MCP client config.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		h.rejectLogin(errParam)
		writeJSON(w, http.StatusBadRequest, oauth.ErrorResponse{
			Error:            errParam,
			ErrorDescription: "You denied the authentication request or an error occurred.",
		})
		return
	}

	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, oauth.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Missing authorization code or state parameter.",
		})
		return
	}

	flow := h.sc.Flow()
	if flow == nil {
		writeOAuthError(w, oauth.HTTPError(errors.New("oauth flow not configured")))
		return
	}

	ctx := r.Context()
	identity, err := flow.CompleteAuthorization(ctx, code, state)
	if err != nil {
		h.rejectLogin(err.Error())
		writeOAuthError(w, oauth.HTTPError(err))
		return
	}

	sessions := h.sc.Sessions()
	credential, err := sessions.CreateSession(ctx, identity.Subject, identity.Email)
	if err != nil {
		h.sc.Logger().Error("Failed to create session", logging.Operation("auth.callback"), logging.Err(err))
		writeOAuthError(w, oauth.HTTPError(err))
		return
	}
	exchangeCode, err := sessions.CreateExchangeCode(ctx, identity.Subject)
	if err != nil {
		h.sc.Logger().Error("Failed to create exchange code", logging.Operation("auth.callback"), logging.Err(err))
		writeOAuthError(w, oauth.HTTPError(err))
		return
	}

	h.sc.Logger().Info("User signed in", logging.Operation("auth.callback"), logging.SubjectHash(identity.Subject), logging.Domain(identity.Email))
	writeJSON(w, http.StatusOK, CallbackResponse{
		UserEmail:    identity.Email,
		ExchangeCode: exchangeCode,
		MCPConfig:    NewMCPConfig(h.sc.BaseURL(), credential, ""),
	})
}

func (h *AuthHandler) rejectLogin(reason string) {
	h.sc.AuditLogger().LogAuthEvent(instrumentation.AuthEvent{
		Event:  instrumentation.AuthEventLoginRejected,
		Reason: reason,
	})
}

// HandleSetup redeems an exchange code for a fresh session.
func (h *AuthHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, oauth.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Missing exchange code",
		})
		return
	}

	ctx := r.Context()
	credential, ok := h.sc.Sessions().RedeemExchangeCode(ctx, code)
	if !ok {
		writeJSON(w, http.StatusBadRequest, oauth.ErrorResponse{
			Error:            "invalid_code",
			ErrorDescription: "The exchange code is invalid, expired, or already used.",
		})
		return
	}

	email := "Unknown"
	if claims, ok := h.sc.Sessions().VerifySession(ctx, credential); ok && claims.Email != "" {
		email = claims.Email
	}

	writeJSON(w, http.StatusOK, SetupResponse{
		UserEmail: email,
		MCPConfig: NewMCPConfig(h.sc.BaseURL(), credential, "sse"),
	})
}

// HandleLogout revokes the presented session. The response does not reveal
// whether the credential was valid.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if credential, ok := session.BearerToken(r); ok {
		h.sc.Sessions().RevokeSession(r.Context(), credential)
	}
	writeJSON(w, http.StatusOK, LogoutResponse{Status: "logged_out"})
}

func writeOAuthError(w http.ResponseWriter, err *oauth.OAuthError) {
	writeJSON(w, err.Status, err.Response())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
