package observability

import (
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// LogHook forwards zerolog events to an OpenTelemetry logger. Only the
// message and level are carried; structured fields stay in the local sink.
type LogHook struct {
	logger otellog.Logger
}

// NewLogHook creates a hook emitting to logger
func NewLogHook(logger otellog.Logger) LogHook {
	return LogHook{logger: logger}
}

// Run implements zerolog.Hook
func (h LogHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetBody(otellog.StringValue(message))
	record.SetSeverity(severity(level))
	record.SetSeverityText(level.String())

	h.logger.Emit(e.GetCtx(), record)
}

func severity(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel:
		return otellog.SeverityFatal
	case zerolog.PanicLevel:
		return otellog.SeverityFatal4
	default:
		return otellog.SeverityUndefined
	}
}
