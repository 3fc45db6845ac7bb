package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/coursehub/authcore/internal/audit"
)

// AuditEvent is the event shape delivered to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events emitted by the engine.
type AuditSink = internalaudit.Sink

// Audit event types emitted by the engine.
const (
	EventLogin               = "login"
	EventLoginExternal       = "login_external"
	EventRegister            = "register"
	EventRefresh             = "refresh"
	EventRefreshReuse        = "refresh_reuse_lockout"
	EventLogout              = "logout"
	EventLogoutAll           = "logout_all"
	EventPasswordChange      = "password_change"
	EventResetRequest        = "password_reset_request"
	EventResetConfirm        = "password_reset_confirm"
	EventVerificationRequest = "email_verification_request"
	EventVerificationConfirm = "email_verification_confirm"
)

// NewJSONAuditSink returns a sink writing one JSON event per line.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewChannelAuditSink returns a sink exposing events on a buffered channel,
// plus the channel itself.
func NewChannelAuditSink(buffer int) (AuditSink, <-chan AuditEvent) {
	sink := internalaudit.NewChannelSink(buffer)
	return sink, sink.Events()
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID, email string, success bool, opErr error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}
