package web

import (
	"errors"
	"net/http"
	"time"

	"coachportal/internal/adapters/identity"
	"coachportal/internal/application/listutil"
	"coachportal/internal/application/orchestrators"
	profileDomain "coachportal/internal/domain/profile"
)

// requireAdmin resolves the caller and rejects non-administrators.
func (h *handlers) requireAdmin(w http.ResponseWriter, r *http.Request) (profileDomain.Profile, bool) {
	caller, ok := h.callerProfile(r)
	if !ok {
		jsonMessage(w, http.StatusUnauthorized, "sign in first")
		return profileDomain.Profile{}, false
	}
	if !caller.IsAdmin() {
		jsonMessage(w, http.StatusForbidden, "administrator role required")
		return profileDomain.Profile{}, false
	}
	return caller, true
}

func (h *handlers) handleAdminMembers(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	pp := listutil.ParsePageParams(r.URL.Query())
	members, err := orchestrators.ExecuteListMembers(r.Context(),
		orchestrators.ListMembersInput{
			Caller: caller,
			Status: r.URL.Query().Get("status"),
			Limit:  pp.PerPage,
			Offset: pp.Offset(),
		},
		orchestrators.ListMembersDeps{ProfileStore: h.deps.ProfileStore})
	if err != nil {
		internalError(w, err)
		return
	}

	payload := make([]profilePayload, 0, len(members))
	for _, m := range members {
		payload = append(payload, profilePayload{
			ID:     m.ID,
			Email:  m.Email,
			Name:   m.Name,
			Role:   m.Role,
			Status: m.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": payload})
}

func (h *handlers) handleAdminApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Ref string `json:"ref"`
	}
	if err := strictDecode(r, &req); err != nil || req.Ref == "" {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := orchestrators.ExecuteApproveMember(r.Context(),
		orchestrators.ApproveMemberInput{Ref: req.Ref, Caller: caller, BaseURL: h.deps.BaseURL},
		orchestrators.ApproveMemberDeps{ProfileStore: h.deps.ProfileStore, Gateway: h.newGatewayClient()})
	switch {
	case err == nil:
		h.refreshVisitor(r)
		writeJSON(w, http.StatusOK, map[string]string{"status": profileDomain.StatusApproved})
	case errors.Is(err, orchestrators.ErrMemberNotFound):
		jsonMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, profileDomain.ErrNotPending):
		jsonMessage(w, http.StatusConflict, err.Error())
	default:
		internalError(w, err)
	}
}

func (h *handlers) handleAdminToggle(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Ref string `json:"ref"`
	}
	if err := strictDecode(r, &req); err != nil || req.Ref == "" {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	status, err := orchestrators.ExecuteToggleStatus(r.Context(),
		orchestrators.ToggleStatusInput{Ref: req.Ref, Caller: caller},
		orchestrators.ToggleStatusDeps{ProfileStore: h.deps.ProfileStore})
	switch {
	case err == nil:
		h.refreshVisitor(r)
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	case errors.Is(err, orchestrators.ErrSelfLockout):
		jsonMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrators.ErrMemberNotFound):
		jsonMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, profileDomain.ErrNotToggleable):
		jsonMessage(w, http.StatusConflict, err.Error())
	default:
		internalError(w, err)
	}
}

func (h *handlers) handleAdminRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req struct {
		Ref  string `json:"ref"`
		Role string `json:"role"`
	}
	if err := strictDecode(r, &req); err != nil || req.Ref == "" {
		jsonMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := orchestrators.ExecuteUpdateRole(r.Context(),
		orchestrators.UpdateRoleInput{Ref: req.Ref, NewRole: req.Role, Caller: caller},
		orchestrators.UpdateRoleDeps{ProfileStore: h.deps.ProfileStore})
	switch {
	case err == nil:
		h.refreshVisitor(r)
		writeJSON(w, http.StatusOK, map[string]string{"role": req.Role})
	case errors.Is(err, orchestrators.ErrSelfLockout):
		jsonMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrators.ErrMemberNotFound):
		jsonMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, profileDomain.ErrInvalidRole):
		jsonMessage(w, http.StatusBadRequest, err.Error())
	default:
		internalError(w, err)
	}
}

// handleAdminPerf exposes the request/query percentiles collected by
// the timing middleware and the timed DB wrapper.
func (h *handlers) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	if h.collector == nil {
		jsonMessage(w, http.StatusNotFound, "perf collection disabled")
		return
	}
	snapshot := h.collector.Snapshot(timeNow().Add(-time.Hour), 10)
	writeJSON(w, http.StatusOK, snapshot)
}

// newGatewayClient hands orchestrators a fresh identity client so
// their gateway calls never disturb the admin's own session.
func (h *handlers) newGatewayClient() *identity.Client {
	return h.deps.Identity.NewClient()
}

// refreshVisitor re-reconciles the calling visitor so a status change
// they made is reflected in their own access state immediately.
func (h *handlers) refreshVisitor(r *http.Request) {
	if v, ok := visitorFrom(r.Context()); ok {
		v.Reconciler.Refresh(r.Context())
	}
}
