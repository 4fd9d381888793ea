package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/service"
)

// maxBodyBytes caps request bodies; imports are the largest legitimate payload.
const maxBodyBytes = 8 << 20

// outcome pairs an HTTP status code with the status string reported to clients.
type outcome struct {
	code   int
	status string
}

var outcomes = []struct {
	err error
	outcome
}{
	{service.ErrMissingInput, outcome{http.StatusBadRequest, "MISSING_INPUT"}},
	{service.ErrInvalidStatus, outcome{http.StatusBadRequest, "MISSING_INPUT"}},
	{service.ErrInvalidData, outcome{http.StatusBadRequest, "INVALID_DATA"}},
	{service.ErrUnknownAccount, outcome{http.StatusNotFound, "UNKNOWN_ACCOUNT"}},
	{service.ErrNotFound, outcome{http.StatusNotFound, "NOT_FOUND"}},
	{service.ErrInvalidCredentials, outcome{http.StatusUnauthorized, "INVALID_CREDENTIALS"}},
	{service.ErrResetNotPending, outcome{http.StatusConflict, "RESET_NOT_PENDING"}},
	{service.ErrAlreadyExists, outcome{http.StatusConflict, "ALREADY_EXISTS"}},
	{service.ErrCannotDeleteAdmin, outcome{http.StatusBadRequest, "CANNOT_DELETE_ADMIN"}},
	{service.ErrForbidden, outcome{http.StatusForbidden, "AUTH_FORBIDDEN"}},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult writes the {success, status, message} envelope plus extra fields.
func writeResult(w http.ResponseWriter, code int, status, message string, extra map[string]any) {
	body := map[string]any{
		"success": code < http.StatusBadRequest,
		"status":  status,
	}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

// writeError maps a service error onto the response. Unknown errors are
// storage failures: they are logged and reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			writeResult(w, o.code, o.status, err.Error(), nil)
			return
		}
	}
	log.Error("request failed", zap.Error(err))
	writeResult(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

// decodeBody reads a JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeResult(w, http.StatusBadRequest, "MISSING_INPUT", "invalid request body", nil)
		return false
	}
	return true
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
