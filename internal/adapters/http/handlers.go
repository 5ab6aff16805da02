package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coachportal/internal/adapters/http/perf"
	"coachportal/internal/adapters/identity"
	"coachportal/internal/application/orchestrators"
	"coachportal/internal/application/reconcile"
	"coachportal/internal/application/view"
	profileDomain "coachportal/internal/domain/profile"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// settleTimeout bounds how long a handler waits for the reconciler to
// absorb a sign-in or sign-out before replying.
const settleTimeout = 5 * time.Second

const activationCookieName = "portal_activate"

type handlers struct {
	deps      *Deps
	visitors  *visitorRegistry
	collector *perf.Collector
}

func (h *handlers) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/session", h.handleSession)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)
	mux.HandleFunc("POST /api/subscribe", h.handleSubscribe)
	mux.HandleFunc("GET /api/activation", h.handleActivationEmail)
	mux.HandleFunc("POST /api/activate", h.handleActivate)

	mux.HandleFunc("GET /api/admin/members", h.handleAdminMembers)
	mux.HandleFunc("POST /api/admin/members/approve", h.handleAdminApprove)
	mux.HandleFunc("POST /api/admin/members/toggle", h.handleAdminToggle)
	mux.HandleFunc("POST /api/admin/members/role", h.handleAdminRole)
	mux.HandleFunc("GET /api/admin/perf", h.handleAdminPerf)

	mux.HandleFunc("POST /api/uploads", h.handleUploadCreate)
	mux.HandleFunc("GET /api/uploads", h.handleUploadList)
	mux.HandleFunc("DELETE /api/uploads/{id}", h.handleUploadDelete)

	if h.deps.DemoLoginEnabled {
		mux.HandleFunc("POST /api/demo-login", h.handleDemoLogin)
	}
}

// root wraps the static file server to intercept activation links:
// /?activate=email stashes the email in a cookie and redirects to the
// password-set screen with a clean address.
func (h *handlers) root(static http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.URL.Query().Get("activate") != "" {
			email := r.URL.Query().Get("activate")
			http.SetCookie(w, &http.Cookie{
				Name:     activationCookieName,
				Value:    url.QueryEscape(email),
				HttpOnly: true,
				Secure:   h.deps.Production,
				SameSite: http.SameSiteLaxMode,
				Path:     "/",
				MaxAge:   3600,
			})
			http.Redirect(w, r, "/set-password", http.StatusSeeOther)
			return
		}
		static.ServeHTTP(w, r)
	})
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionPayload is the /api/session response body.
type sessionPayload struct {
	Phase   string          `json:"phase"`
	Screen  string          `json:"screen"`
	Reason  string          `json:"reason,omitempty"`
	Profile *profilePayload `json:"profile,omitempty"`
}

type profilePayload struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func toSessionPayload(st reconcile.AccessState) sessionPayload {
	payload := sessionPayload{
		Phase:  string(st.Phase),
		Screen: view.Route(st),
		Reason: st.Reason,
	}
	if st.Profile != nil {
		payload.Profile = &profilePayload{
			ID:     st.Profile.ID,
			Email:  st.Profile.Email,
			Name:   st.Profile.Name,
			Role:   st.Profile.Role,
			Status: st.Profile.Status,
		}
	}
	return payload
}

// callerProfile returns the visitor's resolved profile, if the
// reconciler has them in the AUTHENTICATED phase.
func (h *handlers) callerProfile(r *http.Request) (profileDomain.Profile, bool) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		return profileDomain.Profile{}, false
	}
	st := v.Reconciler.State()
	if st.Phase != reconcile.PhaseAuthenticated || st.Profile == nil {
		return profileDomain.Profile{}, false
	}
	return *st.Profile, true
}

// handleSession reports the visitor's access state. The front end
// polls this instead of holding auth logic of its own.
func (h *handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		internalError(w, errors.New("no visitor in context"))
		return
	}

	// Wait out the startup check so the first poll doesn't flash a
	// loading screen; the failsafe bounds this.
	ctx, cancel := cappedContext(r, settleTimeout)
	defer cancel()
	st, _ := v.Reconciler.WaitFor(ctx, func(st reconcile.AccessState) bool {
		return st.Phase != reconcile.PhaseUninitialized && st.Phase != reconcile.PhaseChecking
	})
	writeJSON(w, http.StatusOK, toSessionPayload(st))
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		internalError(w, errors.New("no visitor in context"))
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := strictDecode(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := v.Client.SignInWithPassword(r.Context(), email, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			jsonMessage(w, http.StatusUnauthorized, h.loginHint(r, email))
			return
		}
		internalError(w, err)
		return
	}

	ctx, cancel := cappedContext(r, settleTimeout)
	defer cancel()
	st, _ := v.Reconciler.WaitFor(ctx, func(st reconcile.AccessState) bool {
		return st.Phase == reconcile.PhaseAuthenticated || st.Phase == reconcile.PhaseRejected
	})

	status := http.StatusOK
	if st.Phase == reconcile.PhaseRejected {
		status = http.StatusForbidden
	}
	// A rejected sign-in is forced back out, leaving no token to keep.
	if token := v.Client.CurrentToken(); token != "" {
		h.visitors.setSessionCookie(w, token)
	}
	writeJSON(w, status, toSessionPayload(st))
}

// loginHint improves the generic credential error when the email
// belongs to a profile that cannot sign in yet.
func (h *handlers) loginHint(r *http.Request, email string) string {
	p, err := h.deps.ProfileStore.GetByEmail(r.Context(), email)
	if err != nil {
		return identity.ErrInvalidCredentials.Error()
	}
	switch p.Status {
	case profileDomain.StatusPending:
		return "your membership request is still awaiting review"
	case profileDomain.StatusApproved:
		return "your account is approved but has no password yet; use the activation link from your email"
	default:
		return identity.ErrInvalidCredentials.Error()
	}
}

func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		internalError(w, errors.New("no visitor in context"))
		return
	}
	if err := v.Client.SignOut(r.Context()); err != nil {
		internalError(w, err)
		return
	}

	ctx, cancel := cappedContext(r, settleTimeout)
	defer cancel()
	st, _ := v.Reconciler.WaitFor(ctx, func(st reconcile.AccessState) bool {
		return st.Phase == reconcile.PhaseUnauthenticated || st.Phase == reconcile.PhaseRejected
	})
	h.visitors.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, toSessionPayload(st))
}

func (h *handlers) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := strictDecode(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := orchestrators.ExecuteRequestMembership(r.Context(),
		orchestrators.RequestMembershipInput{Email: req.Email, Name: req.Name},
		orchestrators.RequestMembershipDeps{ProfileStore: h.deps.ProfileStore})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "pending"})
	case errors.Is(err, orchestrators.ErrDuplicateRequest):
		jsonMessage(w, http.StatusConflict, err.Error())
	case isValidationError(err):
		jsonMessage(w, http.StatusBadRequest, err.Error())
	default:
		internalError(w, err)
	}
}

// handleActivationEmail returns the email stashed by an activation
// link so the password-set screen can prefill it.
func (h *handlers) handleActivationEmail(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(activationCookieName)
	if err != nil || cookie.Value == "" {
		jsonMessage(w, http.StatusNotFound, "no activation pending")
		return
	}
	email, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		jsonMessage(w, http.StatusNotFound, "no activation pending")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (h *handlers) handleActivate(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		internalError(w, errors.New("no visitor in context"))
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := strictDecode(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := orchestrators.ExecuteCompleteActivation(r.Context(),
		orchestrators.CompleteActivationInput{Email: req.Email, NewPassword: req.Password},
		orchestrators.CompleteActivationDeps{ProfileStore: h.deps.ProfileStore, Gateway: v.Client})
	switch {
	case err == nil:
		// Activation consumed; drop the stashed email.
		http.SetCookie(w, &http.Cookie{Name: activationCookieName, Value: "", Path: "/", MaxAge: -1})
		v.Reconciler.Refresh(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
	case errors.Is(err, orchestrators.ErrMemberNotFound):
		jsonMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, identity.ErrPasswordTooShort):
		jsonMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profileDomain.ErrDisabled):
		jsonMessage(w, http.StatusConflict, "this account has been disabled")
	default:
		internalError(w, err)
	}
}

// demoLogins maps the landing-page demo buttons to seeded accounts.
var demoLogins = map[string]struct{ email, password string }{
	"coach":   {"demo+coach@coachportal.test", "DemoCoach1"},
	"pending": {"demo+pending@coachportal.test", "DemoPending1"},
}

// handleDemoLogin signs in one of the seeded demo accounts through
// the normal credential path.
func (h *handlers) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFrom(r.Context())
	if !ok {
		internalError(w, errors.New("no visitor in context"))
		return
	}

	var req struct {
		Account string `json:"account"`
	}
	if err := strictDecode(r, &req); err != nil {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	login, ok := demoLogins[req.Account]
	if !ok {
		jsonMessage(w, http.StatusBadRequest, "unknown demo account")
		return
	}

	if _, err := v.Client.SignInWithPassword(r.Context(), login.email, login.password); err != nil {
		internalError(w, err)
		return
	}
	ctx, cancel := cappedContext(r, settleTimeout)
	defer cancel()
	st, _ := v.Reconciler.WaitFor(ctx, func(st reconcile.AccessState) bool {
		return st.Phase == reconcile.PhaseAuthenticated || st.Phase == reconcile.PhaseRejected
	})
	if token := v.Client.CurrentToken(); token != "" {
		h.visitors.setSessionCookie(w, token)
	}
	writeJSON(w, http.StatusOK, toSessionPayload(st))
}

// cappedContext derives a request context bounded by d.
func cappedContext(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, profileDomain.ErrEmptyEmail),
		errors.Is(err, profileDomain.ErrInvalidEmail),
		errors.Is(err, profileDomain.ErrInvalidRole),
		errors.Is(err, profileDomain.ErrInvalidStatus):
		return true
	}
	return false
}
