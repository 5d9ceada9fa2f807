package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidState is returned when a callback's state is unknown,
	// expired or already used.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrTokenExchangeFailed is returned when the provider rejects the
	// code exchange or the userinfo request.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrReauthenticationRequired is returned by UserTokenSource when no
	// usable access token exists for the user.
	ErrReauthenticationRequired = errors.New("unable to get valid access token, please re-authenticate")
)

// OAuthError is an error rendered to HTTP clients.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewOAuthError creates a new OAuth error.
func NewOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}

// Response converts the error into its JSON body.
func (e *OAuthError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Code, ErrorDescription: e.Description}
}

// HTTPError maps flow errors to the error shown to the browser.
func HTTPError(err error) *OAuthError {
	var oauthErr *OAuthError
	switch {
	case errors.As(err, &oauthErr):
		return oauthErr
	case errors.Is(err, ErrInvalidState):
		return NewOAuthError("invalid_state", "Invalid or expired state parameter", http.StatusBadRequest)
	case errors.Is(err, ErrTokenExchangeFailed):
		return NewOAuthError("token_exchange_failed", "Failed to exchange authorization code", http.StatusBadRequest)
	default:
		return NewOAuthError("server_error", "Internal server error", http.StatusInternalServerError)
	}
}
