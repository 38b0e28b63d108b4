package audit

import (
	"log/slog"

	"campaignd/internal/observability"
)

// Sink is the fire-and-forget error sink. It never returns an error and
// never panics; background processing has no synchronous caller to report
// to, so structured logs plus a counter are the observable surface.
type Sink struct {
	Logger *slog.Logger
}

func (s *Sink) LogError(msg string, err error, context map[string]any) {
	observability.AuditErrors.Inc()

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, 2+2*len(context))
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	for k, v := range context {
		attrs = append(attrs, k, v)
	}
	logger.Error(msg, attrs...)
}
