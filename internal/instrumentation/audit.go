package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calweather/internal/logging"
)

// ToolInvocation captures one MCP tool call for the audit log.
type ToolInvocation struct {
	Tool string

	// Caller identity from the verified session.
	UserSub   string
	UserEmail string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing a tool invocation.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

// WithUser sets the caller identity.
func (ti *ToolInvocation) WithUser(sub, email string) *ToolInvocation {
	ti.UserSub = sub
	ti.UserEmail = email
	return ti
}

// WithSpanContext copies the trace and span IDs from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete stops the timer and records the outcome.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ti *ToolInvocation) attrs(includePII bool) []any {
	args := []any{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if includePII {
		args = append(args, slog.String("user_sub", ti.UserSub), slog.String("user", ti.UserEmail))
	} else {
		args = append(args, logging.SubjectHash(ti.UserSub), slog.String("user_domain", ExtractUserDomain(ti.UserEmail)))
	}
	if ti.TraceID != "" {
		args = append(args, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		args = append(args, slog.String("error", ti.Error))
	}
	return args
}

// Auth audit event names.
const (
	AuthEventLogin           = "login"
	AuthEventSessionIssued   = "session_issued"
	AuthEventSessionRevoked  = "session_revoked"
	AuthEventCodeRedeemed    = "exchange_code_redeemed"
	AuthEventRefreshFailed   = "token_refresh_failed"
	AuthEventLoginRejected   = "login_rejected"
	AuthEventSetupRejected   = "setup_rejected"
	AuthEventSessionRejected = "session_rejected"
)

// AuthEvent is a security relevant change in a user's credentials.
type AuthEvent struct {
	Event     string
	UserSub   string
	UserEmail string
	Reason    string
}

// AuditLogger writes tool and authentication audit records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("audit", true),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation writes a completed tool invocation.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}
	if ti.Success {
		al.logger.Info("tool_executed", ti.attrs(al.includePII)...)
	} else {
		al.logger.Warn("tool_failed", ti.attrs(al.includePII)...)
	}
}

// LogAuthEvent writes an authentication event.
func (al *AuditLogger) LogAuthEvent(ev AuthEvent) {
	if al == nil || !al.enabled {
		return
	}
	args := []any{slog.String("event", ev.Event)}
	if al.includePII {
		args = append(args, slog.String("user_sub", ev.UserSub), slog.String("user", ev.UserEmail))
	} else {
		args = append(args, logging.SubjectHash(ev.UserSub), logging.UserHash(ev.UserEmail))
	}
	if ev.Reason != "" {
		args = append(args, logging.Reason(ev.Reason))
	}
	al.logger.Info("auth_event", args...)
}
