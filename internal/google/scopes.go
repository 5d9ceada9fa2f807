package google

// DefaultOAuthScopes are requested on every login. The OpenID scopes yield
// the subject and email returned by the userinfo endpoint; the calendar
// scopes back the calendar tools.
var DefaultOAuthScopes = []string{
	"openid",
	"profile",
	"email",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/calendar.readonly",
}
