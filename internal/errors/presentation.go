package errors

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// UserMessage returns a user-friendly error message
func UserMessage(err error) string {
	if sErr, ok := As(err); ok {
		return formatUserError(sErr)
	}
	return err.Error()
}

// formatUserError creates user-friendly error messages based on error type
func formatUserError(sErr *SQLHTTPError) string {
	switch sErr.Type {
	case ErrorTypeInvalidInput:
		return formatInvalidInputError(sErr)
	case ErrorTypeTransport:
		return formatTransportError(sErr)
	case ErrorTypeCancelled:
		return "request cancelled"
	case ErrorTypeConfig:
		return formatConfigError(sErr)
	case ErrorTypeTranscoding:
		return formatTranscodingError(sErr)
	default:
		return sErr.Error()
	}
}

func formatInvalidInputError(sErr *SQLHTTPError) string {
	msg := sErr.Message
	if field, ok := sErr.Context["field"]; ok {
		msg = fmt.Sprintf("Invalid %s: %s", field, msg)
	}
	return msg
}

func formatTransportError(sErr *SQLHTTPError) string {
	msg := sErr.Error()
	if url, ok := sErr.Context["url"]; ok {
		msg = fmt.Sprintf("Transport error accessing %s: %s", url, msg)
	}
	return msg
}

func formatConfigError(sErr *SQLHTTPError) string {
	msg := sErr.Message
	if option, ok := sErr.Context["option"]; ok {
		msg = fmt.Sprintf("Configuration error (%s): %s", option, msg)
	}
	return msg
}

func formatTranscodingError(sErr *SQLHTTPError) string {
	if charset, ok := sErr.Context["charset"]; ok {
		return fmt.Sprintf("%s (charset %s)", sErr.Message, charset)
	}
	return sErr.Message
}

// PresentError logs an error through the global zerolog logger at error level
func PresentError(err error) {
	if err == nil {
		return
	}

	if sErr, ok := As(err); ok {
		event := log.Error().Str("error_type", string(sErr.Type))
		for key, value := range sErr.Context {
			event = event.Interface(key, value)
		}
		if sErr.Cause != nil {
			event = event.Err(sErr.Cause)
		}
		event.Msg(sErr.Message)
		return
	}
	log.Error().Err(err).Msg("")
}

// DebugInfo returns detailed error information for debugging
func DebugInfo(err error) map[string]interface{} {
	info := map[string]interface{}{
		"error":   err.Error(),
		"type":    "unknown",
		"context": map[string]interface{}{},
	}

	if sErr, ok := As(err); ok {
		info["type"] = string(sErr.Type)
		info["message"] = sErr.Message
		info["context"] = sErr.Context

		if sErr.Cause != nil {
			info["cause"] = sErr.Cause.Error()
		}
	}

	return info
}
