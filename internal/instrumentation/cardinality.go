package instrumentation

import "strings"

// ExtractUserDomain reduces an email address to its domain so it can be used
// as a metric label without creating one series per user.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Upstream operation names.
const (
	OperationTokenExchange = "token_exchange"
	OperationUserInfo      = "userinfo"
	OperationRefresh       = "refresh"
	OperationList          = "list"
	OperationCreate        = "create"
	OperationCurrent       = "current"
	OperationForecast      = "forecast"
)
