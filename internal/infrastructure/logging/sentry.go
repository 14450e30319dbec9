package logging

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/bivex/subscription-renewals/internal/domain/service"
	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
)

const sentryFlushTimeout = 2 * time.Second

// InitSentry configures the global Sentry client
func InitSentry(cfg config.SentryConfig) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
}

// FlushSentry waits for buffered events to be delivered
func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}

// SentryReporter sends critical errors to Sentry
type SentryReporter struct {
	hub *sentry.Hub
}

var _ service.ErrorReporter = (*SentryReporter)(nil)

// NewSentryReporter creates a reporter bound to the given hub, or the current hub if nil
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub}
}

// CaptureError reports err with the given tags
func (r *SentryReporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := r.hub
	if ctxHub := sentry.GetHubFromContext(ctx); ctxHub != nil {
		hub = ctxHub
	}
	hub = hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
