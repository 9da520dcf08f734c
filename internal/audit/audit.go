// Package audit records account lifecycle events in a stable, structured
// shape, separate from request logging. Events go to the shared logger
// today; the sink can change without touching call sites.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/verimail/internal/observability/logger"
)

const (
	EventUserRegistered = "user_registered"
	EventUserLoggedIn   = "user_logged_in"
	EventVerifyIssued   = "verify_issued"
	EventEmailVerified  = "email_verified"
)

// Log emits one audit event with the given fields.
func Log(ctx context.Context, event string, fields map[string]any) {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	logger.From(ctx).Named("audit").Info(event, zf...)
}
