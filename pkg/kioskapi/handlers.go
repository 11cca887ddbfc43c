package kioskapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/qrcode"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// CheckInRequest is the body of POST /v1/check-ins.
type CheckInRequest struct {
	Code         string `json:"code"`
	AttributedBy string `json:"attributed_by,omitempty"`
}

func (a *API) checkIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	key := throttleKey(r)
	if !a.admit(r.Context(), w, key) {
		return
	}

	res, err := a.ledger.CheckIn(r.Context(), req.Code, checkin.WithAttribution(req.AttributedBy))
	if err != nil {
		a.penalize(r.Context(), key, err)
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) peek(w http.ResponseWriter, r *http.Request) {
	key := throttleKey(r)
	if !a.admit(r.Context(), w, key) {
		return
	}

	summary, err := a.ledger.Peek(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.penalize(r.Context(), key, err)
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) qrImage(w http.ResponseWriter, r *http.Request) {
	code := subcode.Normalize(chi.URLParam(r, "code"))
	if !subcode.WellFormed(code) {
		writeError(w, http.StatusBadRequest, checkin.KindMalformedCode.String(), checkin.KindMalformedCode.Message())
		return
	}

	size := qrcode.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "size must be an integer")
			return
		}
		size = n
	}

	img, err := a.cards.PNG(code, size)
	if err != nil {
		if errors.Is(err, qrcode.ErrInvalidSize) {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return
		}
		a.log.ErrorContext(r.Context(), "qr render failed", logger.Code(code), logger.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, http.StatusText(http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// throttleKey is the terminal id, or the client address for requests that
// name no terminal.
func throttleKey(r *http.Request) string {
	if id := TerminalFromContext(r.Context()); id != "" {
		return "terminal:" + id
	}
	return "addr:" + r.RemoteAddr
}

// admit answers 429 and returns false while key is locked out. A limiter
// failure lets the request through.
func (a *API) admit(ctx context.Context, w http.ResponseWriter, key string) bool {
	if a.limiter == nil {
		return true
	}
	res, err := a.limiter.Status(ctx, key)
	if err != nil {
		a.log.WarnContext(ctx, "rate limiter unavailable", logger.Error(err))
		return true
	}
	if res.Allowed() {
		return true
	}

	secs := int(math.Ceil(res.RetryAfter().Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	writeError(w, http.StatusTooManyRequests, CodeTooManyAttempts,
		"Too many unrecognised codes. Please ask the front desk for help.")
	return false
}

// penalize takes a token for codes that look like guesses.
func (a *API) penalize(ctx context.Context, key string, err error) {
	if a.limiter == nil {
		return
	}
	switch checkin.KindOf(err) {
	case checkin.KindMalformedCode, checkin.KindUnknownCode:
		if _, lerr := a.limiter.Allow(ctx, key); lerr != nil {
			a.log.WarnContext(ctx, "rate limiter unavailable", logger.Error(lerr))
		}
	}
}
