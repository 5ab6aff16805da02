package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"coachportal/internal/adapters/identity"
	"coachportal/internal/application/reconcile"
)

const (
	visitorCookieName = "portal_visitor"
	sessionCookieName = "portal_session"
	visitorIdleLimit  = 2 * time.Hour
)

type contextKey string

const visitorContextKey contextKey = "visitor"

// Visitor binds one browser to its identity client and reconciler.
// The reconciler translates the per-visitor gateway events into the
// access state the front end polls.
type Visitor struct {
	ID         string
	Client     *identity.Client
	Reconciler *reconcile.Reconciler

	mu       sync.Mutex
	lastSeen time.Time
}

func (v *Visitor) touch() {
	v.mu.Lock()
	v.lastSeen = time.Now()
	v.mu.Unlock()
}

func (v *Visitor) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// visitorRegistry tracks live visitors and evicts idle ones so their
// reconcilers and gateway subscriptions do not accumulate forever.
type visitorRegistry struct {
	service       *identity.Service
	resolver      reconcile.Resolver
	opts          reconcile.Options
	secureCookies bool

	mu       sync.Mutex
	visitors map[string]*Visitor
}

func newVisitorRegistry(service *identity.Service, resolver reconcile.Resolver, opts reconcile.Options, secureCookies bool) *visitorRegistry {
	reg := &visitorRegistry{
		service:       service,
		resolver:      resolver,
		opts:          opts,
		secureCookies: secureCookies,
		visitors:      make(map[string]*Visitor),
	}
	go reg.evictLoop()
	return reg
}

// Middleware attaches the request's visitor to the context, creating
// one (and its cookie) on first contact.
func (reg *visitorRegistry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := reg.attach(w, r)
		ctx := context.WithValue(r.Context(), visitorContextKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// visitorFrom extracts the visitor placed in context by Middleware.
func visitorFrom(ctx context.Context) (*Visitor, bool) {
	v, ok := ctx.Value(visitorContextKey).(*Visitor)
	return v, ok
}

func (reg *visitorRegistry) attach(w http.ResponseWriter, r *http.Request) *Visitor {
	if cookie, err := r.Cookie(visitorCookieName); err == nil && cookie.Value != "" {
		reg.mu.Lock()
		if v, ok := reg.visitors[cookie.Value]; ok {
			reg.mu.Unlock()
			v.touch()
			return v
		}
		reg.mu.Unlock()
		// Unknown id (restart, eviction): a fresh visitor reuses it so
		// the browser keeps a stable identity.
		return reg.create(w, r, cookie.Value)
	}
	return reg.create(w, r, newVisitorID())
}

func (reg *visitorRegistry) create(w http.ResponseWriter, r *http.Request, id string) *Visitor {
	v := &Visitor{
		ID:       id,
		Client:   reg.service.NewClient(),
		lastSeen: time.Now(),
	}
	// A returning browser presents its session cookie; resuming before
	// the startup probe keeps it signed in across eviction or restart.
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		v.Client.Resume(cookie.Value)
	}
	v.Reconciler = reconcile.New(v.Client, reg.resolver, reg.opts)
	v.Reconciler.Start(context.Background())

	reg.mu.Lock()
	// A concurrent request may have raced us; keep the first one.
	if existing, ok := reg.visitors[id]; ok {
		reg.mu.Unlock()
		v.Reconciler.Close()
		existing.touch()
		return existing
	}
	reg.visitors[id] = v
	reg.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    id,
		HttpOnly: true,
		Secure:   reg.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	return v
}

// setSessionCookie persists the visitor's gateway session token so a
// recreated visitor can resume the session instead of silently signing
// the browser out.
func (reg *visitorRegistry) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   reg.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(identity.SessionTTL / time.Second),
	})
}

func (reg *visitorRegistry) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   reg.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func (reg *visitorRegistry) evictLoop() {
	for {
		time.Sleep(10 * time.Minute)
		cutoff := time.Now().Add(-visitorIdleLimit)
		reg.mu.Lock()
		for id, v := range reg.visitors {
			if v.idleSince().Before(cutoff) {
				v.Reconciler.Close()
				delete(reg.visitors, id)
			}
		}
		reg.mu.Unlock()
	}
}

func newVisitorID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}
