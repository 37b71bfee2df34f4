package rbac

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orgkit/orgkit/pkg/httputil"
)

// Handlers provides HTTP handlers for the access-control endpoints
type Handlers struct {
	service  *Service
	resolver *Resolver
}

// NewHandlers creates new RBAC handlers
func NewHandlers(service *Service, resolver *Resolver) *Handlers {
	return &Handlers{
		service:  service,
		resolver: resolver,
	}
}

// RegisterRoutes registers all access-control routes, each wrapped in an
// otelhttp span named after the route.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	handle := func(path, name string, fn http.HandlerFunc, methods ...string) {
		router.Handle(path, otelhttp.NewHandler(fn, name)).Methods(methods...)
	}

	handle("/users/{id}/organizations", "rbac.list_organizations", h.ListUserOrganizations, "GET")
	handle("/users/{id}/organizations/current", "rbac.current_org", h.GetCurrentOrg, "GET")
	handle("/users/{id}/organizations/switch", "rbac.switch_org", h.SwitchOrganization, "POST")
	handle("/users/{id}/roles", "rbac.assign_role", h.AssignRole, "POST")
	handle("/users/{id}/roles/{role_id}", "rbac.remove_role", h.RemoveRole, "DELETE")
	handle("/organizations/{id}/roles/available", "rbac.available_roles", h.ListAvailableRoles, "GET")
	handle("/users/{id}/actor", "rbac.resolve_actor", h.GetActor, "GET")
}

// statusForCode maps taxonomy codes to HTTP status
func statusForCode(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := CodeOf(err)
	if code == "" {
		code = CodeInternal
	}
	httputil.WriteCodedError(w, statusForCode(code), string(code), err.Error())
}

// SwitchOrganization moves the user into another tenant context
func (h *Handlers) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		OrgID int64 `json:"org_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.SwitchOrganization(r.Context(), userID, req.OrgID)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// AssignRole grants a role to a user
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		RoleID int64 `json:"role_id"`
		OrgID  int64 `json:"org_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var assignedBy *int64
	if actor := ActorFromContext(r.Context()); actor != nil {
		assignedBy = &actor.ID
	}

	result, err := h.service.AssignRole(r.Context(), userID, req.OrgID, req.RoleID, assignedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

// RemoveRole revokes a role from a user
func (h *Handlers) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "role_id")
	if !ok {
		return
	}
	orgID, err := httputil.ParseQueryInt64(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RemoveRole(r.Context(), userID, orgID, roleID); err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// ListUserOrganizations lists the orgs a user belongs to
func (h *Handlers) ListUserOrganizations(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	memberships, err := h.service.GetUserOrganizations(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"organizations": memberships,
	})
}

// GetCurrentOrg returns the user's resolved current organization
func (h *Handlers) GetCurrentOrg(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	current, err := h.service.GetCurrentOrg(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if current == nil {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "no current organization")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, current)
}

// ListAvailableRoles lists the roles assignable within an org
func (h *Handlers) ListAvailableRoles(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	roles, err := h.service.GetAvailableRoles(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"roles": roles,
	})
}

// GetActor returns the resolved authorization snapshot for a user
func (h *Handlers) GetActor(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	actor, err := h.resolver.Resolve(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, actor)
}
