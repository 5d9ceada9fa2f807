// Package session issues and verifies the server's own session credentials.
//
// A session credential is an HS256 JWT whose jti names a server-side record
// in the store, so a credential stays revocable after it is handed out.
// Exchange codes are short lived, single-use values a browser login returns
// to the user; redeeming one yields a fresh session credential.
package session
