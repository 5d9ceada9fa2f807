package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/calweather/internal/session"
)

func TestUserFromContext(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		want   User
		wantOK bool
	}{
		{"no claims", context.Background(), User{}, false},
		{"claims without subject", session.WithClaims(context.Background(), &session.Claims{Email: "e@x.com"}), User{}, false},
		{"session user", userContext("u1", "e@x.com"), User{Sub: "u1", Email: "e@x.com"}, true},
		{"session user without email", userContext("u2", ""), User{Sub: "u2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UserFromContext(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONResult(t *testing.T) {
	result := JSONResult(map[string]int{"event_count": 2})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"event_count":2}`, resultText(result))

	result = JSONResult(func() {})
	assert.True(t, result.IsError)
}
