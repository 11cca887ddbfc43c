package kioskapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
)

// Error codes that are not a checkin.Kind.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeTooManyAttempts = "too_many_attempts"
	CodeInternal        = "internal_error"
)

// Seconds a client should wait after a store outage.
const retryAfterUnavailable = 2

// ErrorDetail is the error object of a response body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error        ErrorDetail      `json:"error"`
	Subscription *checkin.Summary `json:"subscription,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// statusOf maps a ledger error to its HTTP status.
func statusOf(kind checkin.Kind) int {
	switch kind {
	case checkin.KindMalformedCode:
		return http.StatusBadRequest
	case checkin.KindUnknownCode:
		return http.StatusNotFound
	case checkin.KindSessionsExhausted:
		return http.StatusConflict
	case checkin.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	kind := checkin.KindOf(err)
	if kind == checkin.KindNone {
		return http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: CodeInternal, Message: http.StatusText(http.StatusInternalServerError)},
		}
	}
	snapshot, _ := checkin.SnapshotOf(err)
	return statusOf(kind), ErrorResponse{
		Error:        ErrorDetail{Code: kind.String(), Message: kind.Message()},
		Subscription: snapshot,
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterUnavailable))
	}
	writeJSON(w, status, body)
}
