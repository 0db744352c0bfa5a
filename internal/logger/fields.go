package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRunID    = "run_id"
	FieldStage    = "stage"
)

// Fields turns key/value pairs into string fields. Pairs with a blank key or
// value are dropped and a trailing unpaired key is ignored.
func Fields(kv ...string) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, value := strings.TrimSpace(kv[i]), strings.TrimSpace(kv[i+1])
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// With tags log with the given pairs. A nil log becomes a no-op logger.
func With(log *zap.Logger, kv ...string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	fields := Fields(kv...)
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// ForProvider tags log with the inference provider and model.
func ForProvider(log *zap.Logger, provider, model string) *zap.Logger {
	return With(log, FieldProvider, provider, FieldModel, model)
}

// ForRun tags log with a screening run id.
func ForRun(log *zap.Logger, runID string) *zap.Logger {
	return With(log, FieldRunID, runID)
}
