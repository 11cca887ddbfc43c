package kioskapi

import (
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/requestid"
	"github.com/dmitrymomot/kiosk/pkg/scanner"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

const (
	defaultMaxTerminals = 256
	maxKeystrokes       = 512

	// KeyEnter is the key name that terminates a scan.
	KeyEnter = "Enter"
)

// Keystroke is one key press as reported by a kiosk terminal. Key is a
// single character or a key name such as "Enter" or "Shift"; names other
// than Enter are ignored. At is the terminal's own timestamp, so network
// batching does not distort the timing.
type Keystroke struct {
	Key  string    `json:"key"`
	At   time.Time `json:"at,omitzero"`
	Ctrl bool      `json:"ctrl,omitempty"`
	Alt  bool      `json:"alt,omitempty"`
	Meta bool      `json:"meta,omitempty"`
}

func (k Keystroke) event() scanner.KeystrokeEvent {
	ev := scanner.KeystrokeEvent{
		Time: k.At,
		Ctrl: k.Ctrl,
		Alt:  k.Alt,
		Meta: k.Meta,
	}
	switch {
	case k.Key == KeyEnter:
		ev.Terminator = true
	case utf8.RuneCountInString(k.Key) == 1:
		ev.Char, _ = utf8.DecodeRuneInString(k.Key)
	}
	return ev
}

// KeystrokesRequest is the body of POST /v1/terminals/{terminal}/keystrokes.
type KeystrokesRequest struct {
	Events []Keystroke `json:"events"`
}

// ScanResult is the outcome of one decoded code. Exactly one of Result and
// Error is set.
type ScanResult struct {
	Status       int              `json:"status"`
	Result       *checkin.Result  `json:"result,omitempty"`
	Error        *ErrorDetail     `json:"error,omitempty"`
	Subscription *checkin.Summary `json:"subscription,omitempty"`
}

// KeystrokesResponse lists the codes decoded from the request, in order.
type KeystrokesResponse struct {
	Scans    []ScanResult `json:"scans"`
	Buffered int          `json:"buffered"`
}

type terminal struct {
	mu         sync.Mutex
	classifier *scanner.Classifier
	decoded    []string
}

type terminalPool struct {
	cfg       scanner.Config
	observe   scanner.Observer
	timerFunc scanner.TimerFunc
	max       int

	mu        sync.Mutex
	terminals map[string]*terminal
}

func newTerminalPool() *terminalPool {
	return &terminalPool{
		cfg:       scanner.DefaultConfig(),
		max:       defaultMaxTerminals,
		terminals: make(map[string]*terminal),
	}
}

func (p *terminalPool) get(id string) (*terminal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.terminals[id]; ok {
		return t, nil
	}
	if len(p.terminals) >= p.max {
		return nil, ErrTooManyTerminals
	}

	t := &terminal{}
	opts := []scanner.ClassifierOption{
		scanner.WithConfig(p.cfg),
		scanner.WithValidator(subcode.ValidateFormat),
		scanner.WithObserver(p.observe),
	}
	if p.timerFunc != nil {
		opts = append(opts, scanner.WithTimerFunc(p.timerFunc))
	}
	// Decoded codes are only emitted from Feed, which runs under t.mu.
	t.classifier = scanner.New(func(code string) {
		t.decoded = append(t.decoded, code)
	}, opts...)
	p.terminals[id] = t
	return t, nil
}

func (p *terminalPool) remove(id string) bool {
	p.mu.Lock()
	t, ok := p.terminals[id]
	delete(p.terminals, id)
	p.mu.Unlock()

	if ok {
		t.classifier.Close()
	}
	return ok
}

func (p *terminalPool) closeAll() {
	p.mu.Lock()
	terminals := p.terminals
	p.terminals = make(map[string]*terminal)
	p.mu.Unlock()

	for _, t := range terminals {
		t.classifier.Close()
	}
}

// feed runs events through the terminal's classifier and returns the codes
// it decoded.
func (t *terminal) feed(events []Keystroke) (decoded []string, buffered int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range events {
		t.classifier.Feed(k.event())
	}
	decoded, t.decoded = t.decoded, nil
	return decoded, t.classifier.Buffered()
}

func (a *API) keystrokes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "terminal")
	if !validTerminal(id) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, ErrInvalidTerminal.Error())
		return
	}
	ctx := WithTerminal(r.Context(), id)

	var req KeystrokesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if len(req.Events) > maxKeystrokes {
		writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, ErrTooManyKeystrokes.Error())
		return
	}

	key := "terminal:" + id
	if !a.admit(ctx, w, key) {
		return
	}

	t, err := a.terminals.get(id)
	if err != nil {
		a.log.WarnContext(ctx, "terminal rejected", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, CodeInternal, err.Error())
		return
	}

	codes, buffered := t.feed(req.Events)
	resp := KeystrokesResponse{Scans: make([]ScanResult, 0, len(codes)), Buffered: buffered}
	for _, code := range codes {
		// One request can carry several scans; each needs its own
		// idempotency key.
		res, err := a.ledger.CheckIn(ctx, code, checkin.WithRequestID(requestid.New()))
		if err != nil {
			a.penalize(ctx, key, err)
			status, body := errorResponse(err)
			resp.Scans = append(resp.Scans, ScanResult{
				Status:       status,
				Error:        &body.Error,
				Subscription: body.Subscription,
			})
			continue
		}
		resp.Scans = append(resp.Scans, ScanResult{Status: http.StatusOK, Result: res})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) resetTerminal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "terminal")
	if !validTerminal(id) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, ErrInvalidTerminal.Error())
		return
	}
	a.terminals.remove(id)
	w.WriteHeader(http.StatusNoContent)
}
