package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by the dispatch engine and AI backends.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldResumeID   = "resume_id"
	FieldResumeURL  = "resume_url"
	FieldVacancyID  = "vacancy_id"
	FieldVacancyURL = "vacancy_url"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// AIFields describes the AI provider and model. Empty values are dropped.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// ResumeFields identifies a résumé in log entries.
func ResumeFields(id, url string) []zap.Field {
	return StringFields(
		StringField{Key: FieldResumeID, Value: id},
		StringField{Key: FieldResumeURL, Value: url},
	)
}

// VacancyFields identifies a vacancy in log entries.
func VacancyFields(id, url string) []zap.Field {
	return StringFields(
		StringField{Key: FieldVacancyID, Value: id},
		StringField{Key: FieldVacancyURL, Value: url},
	)
}
