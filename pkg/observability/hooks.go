package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/concierge/pkg/domain"
)

// LogHooks returns hooks that audit lifecycle events at debug level,
// and failures at warn level.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "transition",
				"session_key", e.Key,
				"from", e.From,
				"to", e.To,
				"signal", e.Signal.String(),
				"action", e.Action,
			)
		},
		OnSend: func(ctx context.Context, e *domain.SendEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "send", "to", e.To, "template_id", e.TemplateID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "send", "to", e.To, "template_id", e.TemplateID, "duration", e.Duration)
		},
		OnJob: func(ctx context.Context, e *domain.JobEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "job", "job_id", e.JobID, "status", e.Status, "recipients", e.Recipients, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "job", "job_id", e.JobID, "status", e.Status, "recipients", e.Recipients)
		},
	}
}
