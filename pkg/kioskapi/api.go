package kioskapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/httpserver"
	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/qrcode"
	"github.com/dmitrymomot/kiosk/pkg/ratelimiter"
	"github.com/dmitrymomot/kiosk/pkg/requestid"
	"github.com/dmitrymomot/kiosk/pkg/scanner"
)

// API serves the kiosk routes. Create it with New and mount Router.
type API struct {
	ledger    *checkin.Ledger
	log       *slog.Logger
	limiter   *ratelimiter.Bucket
	metrics   http.Handler
	checks    []httpserver.Check
	terminals *terminalPool
	cards     *qrcode.Cache
}

type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithLimiter throttles terminals that keep submitting unknown or malformed codes.
func WithLimiter(b *ratelimiter.Bucket) Option {
	return func(a *API) { a.limiter = b }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// WithReadiness adds checks to GET /health/ready.
func WithReadiness(checks ...httpserver.Check) Option {
	return func(a *API) { a.checks = append(a.checks, checks...) }
}

// WithScannerConfig sets the classifier thresholds for every terminal.
func WithScannerConfig(cfg scanner.Config) Option {
	return func(a *API) { a.terminals.cfg = cfg }
}

// WithScannerObserver reports every terminal's classifier decisions to fn.
func WithScannerObserver(fn scanner.Observer) Option {
	return func(a *API) { a.terminals.observe = fn }
}

// WithMaxTerminals caps the number of terminals with live classifiers.
func WithMaxTerminals(n int) Option {
	return func(a *API) {
		if n > 0 {
			a.terminals.max = n
		}
	}
}

// WithScannerTimerFunc replaces time.AfterFunc in terminal classifiers.
func WithScannerTimerFunc(fn scanner.TimerFunc) Option {
	return func(a *API) { a.terminals.timerFunc = fn }
}

// WithQRCacheCapacity sets how many rendered card images are kept in memory.
func WithQRCacheCapacity(n int) Option {
	return func(a *API) { a.cards = qrcode.NewCache(n) }
}

func New(ledger *checkin.Ledger, opts ...Option) *API {
	a := &API{
		ledger:    ledger,
		log:       logger.Discard(),
		terminals: newTerminalPool(),
		cards:     qrcode.NewCache(qrcode.DefaultCacheCapacity),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(logger.Component("kioskapi"))
	return a
}

// Router returns the HTTP handler with all routes and middleware.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		requestid.Middleware,
		terminalMiddleware,
		a.logRequests,
		middleware.Recoverer,
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, a.checks...))
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/check-ins", a.checkIn)
		r.Get("/subscriptions/{code}", a.peek)
		r.Get("/subscriptions/{code}/qr.png", a.qrImage)
		r.Post("/terminals/{terminal}/keystrokes", a.keystrokes)
		r.Delete("/terminals/{terminal}", a.resetTerminal)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", http.StatusText(http.StatusMethodNotAllowed))
	})
	return r
}

// Close stops every terminal classifier.
func (a *API) Close() {
	a.terminals.closeAll()
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		a.log.Log(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.String("remote_ip", r.RemoteAddr),
			logger.Duration(time.Since(start)),
		)
	})
}
