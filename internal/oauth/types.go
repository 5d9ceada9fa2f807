package oauth

import "time"

// GoogleUserInfo is the response of Google's userinfo endpoint.
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Identity is the user established by a completed authorization.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// PendingAuthorization is the PKCE material kept between BeginAuthorization
// and the callback, keyed by state.
type PendingAuthorization struct {
	Verifier  string    `json:"verifier"`
	Challenge string    `json:"challenge"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the JSON error body returned to HTTP clients.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
