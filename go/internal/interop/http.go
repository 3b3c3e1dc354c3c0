package interop

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes = 1 << 20

	// limiters idle this long are dropped once the table grows past pruneAbove.
	limiterIdle = 10 * time.Minute
	pruneAbove  = 256
)

// Recorder observes interop traffic
type Recorder interface {
	InteropHandled(transport, kind string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) InteropHandled(string, string, bool) {}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests per client
// with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether addr may make a request now.
func (l *RateLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) > pruneAbove {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdle {
				delete(l.clients, k)
			}
		}
	}

	c, ok := l.clients[addr]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[addr] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.Allow(host) {
			log.Warn().Str("remote_addr", host).Str("path", r.URL.Path).Msg("interop request rate limited")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPHandler serves plans and events as JSON over HTTP
type HTTPHandler struct {
	translator *Translator
	limiter    *RateLimiter
	recorder   Recorder
}

// NewHTTPHandler creates the JSON handler. limiter may be nil.
func NewHTTPHandler(translator *Translator, limiter *RateLimiter, recorder Recorder) *HTTPHandler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &HTTPHandler{translator: translator, limiter: limiter, recorder: recorder}
}

// RegisterRoutes mounts the interop endpoints on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	wrap := func(next http.HandlerFunc) http.Handler {
		if h.limiter == nil {
			return next
		}
		return h.limiter.Middleware(next)
	}
	mux.Handle("POST /api/interop/plan", wrap(h.handle("plan", h.translator.ApplyPlan)))
	mux.Handle("POST /api/interop/event", wrap(h.handle("event", h.translator.ApplyEvent)))
}

func (h *HTTPHandler) handle(kind string, apply func(any) Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			h.recorder.InteropHandled("http", kind, false)
			writeResult(w, http.StatusBadRequest, Result{Errors: []string{"body must be valid JSON"}})
			return
		}

		res := apply(body)
		h.recorder.InteropHandled("http", kind, res.OK)

		status := http.StatusOK
		switch {
		case len(res.Errors) > 0:
			status = http.StatusBadRequest
		case !res.OK:
			status = http.StatusConflict
		}
		writeResult(w, status, res)
	}
}

func writeResult(w http.ResponseWriter, status int, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("failed to write interop response")
	}
}
