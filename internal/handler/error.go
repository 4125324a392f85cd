package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
)

// ErrorResponse writes a JSON error response. It maps domain error codes and
// AI provider sentinels to HTTP status codes.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code, status := classifyError(err)
	message := errorMessage(err, code)

	logError(logger, r, err, code, status)

	writeJSONError(w, status, code, message)
}

// classifyError resolves an error to a domain code and HTTP status.
//
// AI provider sentinels are checked first: they travel as wrapped sentinel
// errors, not domain errors, and upstream failures must not surface as
// generic 500s.
func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, ai.EAIRateLimit):
		return domain.EUNAVAILABLE, http.StatusTooManyRequests
	case errors.Is(err, ai.EAITimeout):
		return domain.EUNAVAILABLE, http.StatusGatewayTimeout
	case errors.Is(err, ai.EAIUnavailable), errors.Is(err, ai.EAIUnauthorized):
		// An unauthorized upstream key is a server misconfiguration, not a
		// client authentication failure.
		return domain.EUNAVAILABLE, http.StatusBadGateway
	case errors.Is(err, ai.EAIMalformedOutput):
		// An unusable structured response is a failed service call; ENOOUTPUT
		// is reserved for the model declining to produce an image.
		return domain.EUNAVAILABLE, http.StatusBadGateway
	case errors.Is(err, ai.EAINoImage):
		return domain.ENOOUTPUT, http.StatusBadGateway
	case errors.Is(err, ai.EAIInvalidImage):
		return domain.EINVALID, http.StatusBadRequest
	}

	code := domain.ErrorCode(err)
	return code, ErrorCodeToHTTPStatus(code)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway // 502
	case domain.ENOOUTPUT:
		return http.StatusBadGateway // 502
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// errorMessage picks a safe client-facing message. Provider sentinels are
// checked before the domain message so the specific upstream guidance wins
// even when the service wrapped the sentinel in a domain error.
func errorMessage(err error, code string) string {
	switch {
	case errors.Is(err, ai.EAIRateLimit):
		return "The AI service is receiving too many requests. Please try again shortly."
	case errors.Is(err, ai.EAITimeout):
		return "The AI service took too long to respond. Please try again."
	case errors.Is(err, ai.EAIUnavailable), errors.Is(err, ai.EAIUnauthorized):
		return "The AI service is temporarily unavailable."
	case errors.Is(err, ai.EAIMalformedOutput):
		return "The AI service returned an unusable result. Please try again."
	case errors.Is(err, ai.EAINoImage):
		return "The AI service did not return an edited image. Please try again."
	case errors.Is(err, ai.EAIInvalidImage):
		return "The provided image could not be processed."
	}

	if msg := domain.ErrorMessage(err); msg != "" && code != domain.EINTERNAL {
		return msg
	}
	return "An unexpected error occurred"
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// logError logs the error with level based on status code. 4xx responses are
// expected client errors and log at info.
func logError(logger *slog.Logger, r *http.Request, err error, code string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}

	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// writeJSONError writes a JSON error response body.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// JSONError is a typed response structure for API errors.
type JSONError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
