package web

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"time"

	"coachportal/internal/adapters/http/middleware"
	"coachportal/internal/adapters/http/perf"
	"coachportal/internal/adapters/identity"
	"coachportal/internal/adapters/objectstore"
	profileStore "coachportal/internal/adapters/storage/profile"
	uploadStore "coachportal/internal/adapters/storage/upload"
	"coachportal/internal/application/reconcile"
)

// Deps holds everything the HTTP layer needs.
type Deps struct {
	ProfileStore profileStore.Store
	UploadStore  uploadStore.Store
	ObjectStore  objectstore.Store
	Identity     *identity.Service
	Resolver     reconcile.Resolver

	// BaseURL is the portal's public address, used in activation links.
	BaseURL string
	// CSRFKeyHex is the 64-character hex CSRF secret; empty generates
	// a random key per startup.
	CSRFKeyHex string
	// Production hardens cookies and requires a configured CSRF key.
	Production bool
	// DemoLoginEnabled exposes the demo sign-in endpoint.
	DemoLoginEnabled bool
	// FailsafeTimeout bounds each visitor's startup session check.
	FailsafeTimeout time.Duration
	// SlowRequestThreshold marks requests slower than it for WARN
	// logging; zero uses the middleware default.
	SlowRequestThreshold time.Duration
}

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// loadCSRFKey decodes the configured CSRF secret (hex-encoded, 32
// bytes). In production the key MUST be set; in development a random
// key is generated per startup.
func loadCSRFKey(keyHex string, production bool) []byte {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			log.Fatal("PORTAL_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key
	}
	if production {
		log.Fatal("PORTAL_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to generate CSRF key: %v", err)
	}
	log.Println("WARNING: using random CSRF key (sessions won't survive restart). Set PORTAL_CSRF_KEY for production.")
	return key
}

// NewMux wires HTTP handlers for the portal.
func NewMux(staticDir string, deps *Deps, collector *perf.Collector) http.Handler {
	visitors := newVisitorRegistry(deps.Identity, deps.Resolver, reconcile.Options{
		FailsafeTimeout: deps.FailsafeTimeout,
	}, deps.Production)

	h := &handlers{deps: deps, visitors: visitors, collector: collector}

	mux := http.NewServeMux()
	mux.Handle("/", h.root(http.FileServer(http.Dir(staticDir))))
	h.registerRoutes(mux)

	csrfKey := loadCSRFKey(deps.CSRFKeyHex, deps.Production)

	// Rate limiter: configurable requests per second per IP (OWASP A04)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> Visitor -> CSRF -> SecurityHeaders -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey),
		visitors.Middleware,
		middleware.RateLimit(limiter),
		middleware.Timing(collector, deps.SlowRequestThreshold),
	)
}
