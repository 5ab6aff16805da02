// Package view maps a reconciled access state to the screen the
// interface should show. Thin on purpose; all decisions of substance
// live in the reconciler and the access gate.
package view

import (
	"coachportal/internal/application/access"
	"coachportal/internal/application/reconcile"
)

// Screen identifiers consumed by the front end.
const (
	ScreenLoading     = "LOADING"
	ScreenLanding     = "LANDING"
	ScreenPending     = "PENDING_REVIEW"
	ScreenSetPassword = "SET_PASSWORD"
	ScreenDashboard   = "DASHBOARD"
)

// Route returns the screen for an access state.
// POST: LOADING only while the state is UNINITIALIZED or CHECKING
func Route(st reconcile.AccessState) string {
	switch st.Phase {
	case reconcile.PhaseUninitialized, reconcile.PhaseChecking:
		return ScreenLoading
	case reconcile.PhaseUnauthenticated, reconcile.PhaseRejected:
		return ScreenLanding
	case reconcile.PhaseAuthenticated:
		if st.Profile == nil {
			return ScreenLanding
		}
		d := access.Evaluate(*st.Profile)
		switch {
		case d.Enterable:
			return ScreenDashboard
		case d.Reason == access.ReasonSetPassword:
			return ScreenSetPassword
		default:
			return ScreenPending
		}
	default:
		return ScreenLanding
	}
}
