// Package respond writes JSON bodies and maps domain error kinds to HTTP statuses.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/dom/jober-auth/internal/domain"
	"go.uber.org/zap"
)

var statusByKind = map[domain.Kind]int{
	domain.KindValidation:       http.StatusBadRequest,
	domain.KindUnauthenticated:  http.StatusUnauthorized,
	domain.KindForbidden:        http.StatusForbidden,
	domain.KindNotFound:         http.StatusNotFound,
	domain.KindConflict:         http.StatusConflict,
	domain.KindRateLimited:      http.StatusTooManyRequests,
	domain.KindAttemptsExceeded: http.StatusTooManyRequests,
	domain.KindInternal:         http.StatusInternalServerError,
}

// Status returns the HTTP status for err's kind.
func Status(err error) int {
	if status, ok := statusByKind[domain.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} for err. Internal failures are logged with op
// and answered with a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.String("op", op), zap.Error(err))
	}
	JSON(w, status, errorBody{Error: domain.PublicMessage(err)})
}

// Message writes {"error": msg} with status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}
