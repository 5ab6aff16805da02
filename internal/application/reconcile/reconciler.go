// Package reconcile drives a visitor's identity events to a single
// authoritative access state. The identity gateway delivers its
// signals asynchronously and possibly out of order relative to the
// startup session probe; the reconciler serializes them behind a
// monotonic token so that only the most recently triggered event may
// commit its result.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coachportal/internal/adapters/identity"
	"coachportal/internal/application/access"
	"coachportal/internal/application/resolve"
	"coachportal/internal/domain/profile"
)

// Phase enumerates the reconciled access states.
type Phase string

const (
	PhaseUninitialized   Phase = "UNINITIALIZED"
	PhaseChecking        Phase = "CHECKING"
	PhaseUnauthenticated Phase = "UNAUTHENTICATED"
	PhaseAuthenticated   Phase = "AUTHENTICATED"
	PhaseRejected        Phase = "REJECTED"
)

// ReasonTimeout is reported when the failsafe timer ends the startup
// check before the session probe settles.
const ReasonTimeout = "session check timed out"

// AccessState is the reconciler's output. Profile is set only in the
// AUTHENTICATED phase; Reason only for REJECTED and the failsafe
// timeout. Never persisted, destroyed with the visitor.
type AccessState struct {
	Phase   Phase
	Profile *profile.Profile
	Reason  string
}

// Resolver produces a profile for an authenticated identity. It never
// fails; store trouble degrades to a synthesized fallback.
type Resolver interface {
	Resolve(ctx context.Context, ident resolve.Identity) profile.Profile
}

// flight is one in-progress profile resolution. tok is re-armed when
// a later trigger for the same identity coalesces into it; both fields
// are guarded by the reconciler's mutex.
type flight struct {
	id  string
	tok uint64
}

// Options tune the reconciler's timers.
type Options struct {
	// FailsafeTimeout bounds the CHECKING phase at startup.
	FailsafeTimeout time.Duration
	// ResolveTimeout bounds a single profile resolution.
	ResolveTimeout time.Duration
}

const (
	defaultFailsafeTimeout = 4 * time.Second
	defaultResolveTimeout  = 15 * time.Second
)

// Reconciler owns one visitor's access state. All mutation goes
// through commit, guarded by the token; everything else only reads.
type Reconciler struct {
	gateway  identity.Gateway
	resolver Resolver
	opts     Options

	mu   sync.Mutex
	cond *sync.Cond

	// token advances on every newly triggered reconciliation; an async
	// result is committed only while its captured token is still
	// current.
	token uint64
	state AccessState

	// Single-flight bookkeeping: at most one resolution per identity
	// runs at a time. A repeat trigger for the same identity coalesces
	// into the in-flight one, re-arming its token so the shared result
	// commits as the outcome of the latest trigger.
	flight *flight

	unsubscribe func()
	subs        map[int]func(AccessState)
	nextSub     int
	closed      bool
}

// New builds a Reconciler for one visitor. Call Start to begin the
// startup probe and event subscription.
func New(gateway identity.Gateway, resolver Resolver, opts Options) *Reconciler {
	if opts.FailsafeTimeout <= 0 {
		opts.FailsafeTimeout = defaultFailsafeTimeout
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	r := &Reconciler{
		gateway:  gateway,
		resolver: resolver,
		opts:     opts,
		state:    AccessState{Phase: PhaseUninitialized},
		subs:     make(map[int]func(AccessState)),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start enters CHECKING, launches the one-shot session probe, arms the
// failsafe timer and subscribes to gateway notifications. Whichever of
// probe and failsafe settles first ends CHECKING; the loser's result
// is discarded via the token.
// PRE: Start has not been called before
// POST: state is CHECKING; probe and failsafe are running
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	r.token++
	startTok := r.token
	r.setStateLocked(AccessState{Phase: PhaseChecking})
	r.mu.Unlock()

	r.unsubscribe = r.gateway.OnSessionChange(r.handleEvent)

	go r.probe(ctx, startTok)
	go r.failsafe(startTok)
}

// State returns the current access state.
func (r *Reconciler) State() AccessState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnChange registers a callback invoked on every committed transition
// and returns an unsubscribe handle. Callbacks run on their own
// goroutine, matching the gateway's notification style.
func (r *Reconciler) OnChange(fn func(AccessState)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// WaitFor blocks until the access state satisfies pred or ctx expires.
// Handlers use it to wait out an in-flight reconciliation.
func (r *Reconciler) WaitFor(ctx context.Context, pred func(AccessState) bool) (AccessState, error) {
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for !pred(r.state) {
		if err := ctx.Err(); err != nil {
			return r.state, err
		}
		if r.closed {
			return r.state, context.Canceled
		}
		r.cond.Wait()
	}
	return r.state, nil
}

// Refresh re-runs reconciliation against the gateway's current
// session. Approval workflow mutations call this so a visitor's state
// reflects the new status without waiting for the next sign-in.
func (r *Reconciler) Refresh(ctx context.Context) {
	sess, err := r.gateway.GetCurrentSession(ctx)
	if err != nil || sess == nil {
		r.signedOut()
		return
	}
	r.trigger(sess.Identity, 0)
}

// Close unsubscribes from the gateway and releases waiters. The final
// state remains readable.
func (r *Reconciler) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *Reconciler) handleEvent(e identity.Event) {
	switch e.Type {
	case identity.EventSignedIn:
		if e.Session != nil {
			r.trigger(e.Session.Identity, 0)
		}
	case identity.EventSignedOut:
		r.signedOut()
	}
}

// probe performs the one-shot startup session check.
func (r *Reconciler) probe(ctx context.Context, startTok uint64) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ResolveTimeout)
	defer cancel()

	sess, err := r.gateway.GetCurrentSession(ctx)
	if err != nil || sess == nil {
		r.commit(startTok, AccessState{Phase: PhaseUnauthenticated})
		return
	}
	// Resolve only while no later event has superseded the probe.
	r.trigger(sess.Identity, startTok)
}

// failsafe bounds the CHECKING phase. When it fires first it advances
// the token, so a probe result arriving afterwards is discarded.
func (r *Reconciler) failsafe(startTok uint64) {
	timer := time.NewTimer(r.opts.FailsafeTimeout)
	defer timer.Stop()
	<-timer.C

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token != startTok || r.state.Phase != PhaseChecking {
		return
	}
	r.token++
	r.setStateLocked(AccessState{Phase: PhaseUnauthenticated, Reason: ReasonTimeout})
	slog.Warn("session_event", "event", "failsafe_timeout", "timeout", r.opts.FailsafeTimeout)
}

// trigger starts a reconciliation for an identity. onlyIf, when
// non-zero, makes the trigger conditional on the token still being at
// that value (used by the probe so a later event wins).
func (r *Reconciler) trigger(ident identity.Identity, onlyIf uint64) {
	r.mu.Lock()
	if r.closed || (onlyIf != 0 && r.token != onlyIf) {
		r.mu.Unlock()
		return
	}
	if r.flight != nil && r.flight.id == ident.ID {
		// A fetch for this identity is already running; let it finish
		// and carry the result. Prevents duplicate create-if-absent
		// writes. Re-arm its token so the shared result commits as the
		// outcome of THIS trigger: an intervening sign-out may have
		// advanced the token, and a sign-in arriving after it must
		// still win as the last event.
		r.token++
		r.flight.tok = r.token
		r.mu.Unlock()
		return
	}
	r.token++
	f := &flight{id: ident.ID, tok: r.token}
	r.flight = f
	r.mu.Unlock()

	go r.resolveIdentity(f, ident)
}

// signedOut commits UNAUTHENTICATED and invalidates any in-flight
// resolution.
func (r *Reconciler) signedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token++
	if r.state.Phase == PhaseRejected {
		// The forced sign-out after a disabled-account rejection emits
		// a signed-out notification; keep the rejection visible.
		return
	}
	r.setStateLocked(AccessState{Phase: PhaseUnauthenticated})
}

func (r *Reconciler) resolveIdentity(f *flight, ident identity.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ResolveTimeout)
	defer cancel()

	p := r.resolver.Resolve(ctx, resolve.Identity{ID: ident.ID, Email: ident.Email, Name: ident.Name})

	decision := access.Evaluate(p)
	if decision.SignOutRequired {
		if r.commitFlight(f, AccessState{Phase: PhaseRejected, Reason: decision.Reason}) {
			slog.Info("session_event", "event", "disabled_account_rejected", "email", ident.Email)
			go func() {
				_ = r.gateway.SignOut(context.Background())
			}()
		}
		return
	}
	r.commitFlight(f, AccessState{Phase: PhaseAuthenticated, Profile: &p})
}

// commit applies a transition produced under tok. Stale results, those
// whose token has been superseded by a later trigger, are discarded.
// INVARIANT: the visible state always derives from the most recently
// triggered event
func (r *Reconciler) commit(tok uint64, st AccessState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || tok != r.token {
		slog.Debug("session_event", "event", "stale_result_discarded", "token", tok, "current", r.token)
		return false
	}
	r.setStateLocked(st)
	return true
}

// commitFlight applies a resolution result under the flight's token,
// which may have been re-armed by coalesced triggers since the
// resolution started. The flight's latest token decides, so a result
// shared by several triggers commits as the result of the newest one.
func (r *Reconciler) commitFlight(f *flight, st AccessState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok := f.tok
	if r.flight == f {
		r.flight = nil
	}
	if r.closed || tok != r.token {
		slog.Debug("session_event", "event", "stale_result_discarded", "token", tok, "current", r.token)
		return false
	}
	r.setStateLocked(st)
	return true
}

// setStateLocked records a transition and notifies watchers. Caller
// holds mu.
func (r *Reconciler) setStateLocked(st AccessState) {
	r.state = st
	r.cond.Broadcast()
	slog.Debug("session_event", "event", "state_transition", "phase", st.Phase, "reason", st.Reason)
	for _, fn := range r.subs {
		go fn(st)
	}
}
