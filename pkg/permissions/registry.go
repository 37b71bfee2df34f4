package permissions

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NewRegistry builds a registry from a set of modules and computes metadata
func NewRegistry(modules ...Module) *Registry {
	r := &Registry{Modules: make(map[string]Module, len(modules))}
	for _, m := range modules {
		r.Modules[m.Name] = m
	}
	r.recomputeMetadata()
	return r
}

// recomputeMetadata refreshes the registry counters and generation timestamp
func (r *Registry) recomputeMetadata() {
	total := 0
	for _, m := range r.Modules {
		total += len(m.Permissions)
	}
	r.Metadata = Metadata{
		TotalModules:     len(r.Modules),
		TotalPermissions: total,
		Generated:        time.Now().UTC(),
	}
}

// AllPermissions returns every permission in the registry, sorted by slug
func (r *Registry) AllPermissions() []Permission {
	var perms []Permission
	for _, m := range r.Modules {
		for _, p := range m.Permissions {
			perms = append(perms, p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms
}

// BySlug looks up a permission by its slug
func (r *Registry) BySlug(slug string) (Permission, bool) {
	for _, m := range r.Modules {
		if p, ok := m.Permissions[slug]; ok {
			return p, true
		}
	}
	return Permission{}, false
}

// ByCategory returns all permissions in a category, sorted by slug
func (r *Registry) ByCategory(category Category) []Permission {
	var perms []Permission
	for _, m := range r.Modules {
		for _, p := range m.Permissions {
			if p.Category == category {
				perms = append(perms, p)
			}
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms
}

// ByModule returns the permissions declared by a single module
func (r *Registry) ByModule(name string) ([]Permission, error) {
	m, ok := r.Modules[name]
	if !ok {
		return nil, fmt.Errorf("permission module not found: %s", name)
	}
	perms := make([]Permission, 0, len(m.Permissions))
	for _, p := range m.Permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Slug < perms[j].Slug })
	return perms, nil
}

// ModuleDependencies returns the module names a module declares it depends on
func (r *Registry) ModuleDependencies(name string) ([]string, error) {
	m, ok := r.Modules[name]
	if !ok {
		return nil, fmt.Errorf("permission module not found: %s", name)
	}
	deps := make([]string, len(m.Dependencies))
	copy(deps, m.Dependencies)
	return deps, nil
}

// ValidateDependencies reports, for a candidate set of granted slugs, which
// declared permission dependencies are missing from that set. The report is
// advisory; incomplete grants are flagged, never blocked.
func (r *Registry) ValidateDependencies(granted []string) DependencyReport {
	grantedSet := make(map[string]struct{}, len(granted))
	for _, slug := range granted {
		grantedSet[slug] = struct{}{}
	}

	missingSet := make(map[string]struct{})
	for _, slug := range granted {
		p, ok := r.BySlug(slug)
		if !ok {
			continue
		}
		for _, dep := range p.Dependencies {
			if _, ok := grantedSet[dep]; !ok {
				missingSet[dep] = struct{}{}
			}
		}
	}

	report := DependencyReport{Valid: len(missingSet) == 0}
	for dep := range missingSet {
		report.Missing = append(report.Missing, dep)
	}
	sort.Strings(report.Missing)
	return report
}

// CriticalPermissions returns permissions flagged as critical
func (r *Registry) CriticalPermissions() []Permission {
	var perms []Permission
	for _, p := range r.AllPermissions() {
		if p.Critical {
			perms = append(perms, p)
		}
	}
	return perms
}

// OrgRequiredPermissions returns permissions that only make sense inside an
// organization context
func (r *Registry) OrgRequiredPermissions() []Permission {
	var perms []Permission
	for _, p := range r.AllPermissions() {
		if p.RequiresOrg {
			perms = append(perms, p)
		}
	}
	return perms
}

// slugSet returns the set of all slugs currently in the registry
func (r *Registry) slugSet() map[string]string {
	set := make(map[string]string)
	for name, m := range r.Modules {
		for slug := range m.Permissions {
			set[slug] = name
		}
	}
	return set
}

// isNamespaced reports whether a permission key follows the
// "<module>:<action>" convention
func isNamespaced(key string) bool {
	i := strings.Index(key, ":")
	return i > 0 && i < len(key)-1
}

// CoreRegistry returns the built-in permission catalog
func CoreRegistry() *Registry {
	return NewRegistry(
		Module{
			Name:        "org",
			Description: "Organization management",
			Permissions: map[string]Permission{
				"org:read": {
					Slug: "org:read", Name: "View organization",
					Category: CategoryOrganization, RequiresOrg: true,
				},
				"org:update": {
					Slug: "org:update", Name: "Update organization",
					Category: CategoryOrganization, RequiresOrg: true,
					Dependencies: []string{"org:read"},
				},
				"org:delete": {
					Slug: "org:delete", Name: "Delete organization",
					Category: CategoryOrganization, RequiresOrg: true,
					Dependencies: []string{"org:read"}, Critical: true,
				},
				"org:switch": {
					Slug: "org:switch", Name: "Switch active organization",
					Category: CategoryOrganization,
				},
			},
		},
		Module{
			Name:         "users",
			Description:  "User management",
			Dependencies: []string{"org"},
			Permissions: map[string]Permission{
				"users:read": {
					Slug: "users:read", Name: "View users",
					Category: CategoryUsers, RequiresOrg: true,
				},
				"users:invite": {
					Slug: "users:invite", Name: "Invite users",
					Category: CategoryUsers, RequiresOrg: true,
					Dependencies: []string{"users:read"},
				},
				"users:remove": {
					Slug: "users:remove", Name: "Remove users",
					Category: CategoryUsers, RequiresOrg: true,
					Dependencies: []string{"users:read"}, Critical: true,
				},
			},
		},
		Module{
			Name:         "roles",
			Description:  "Role and permission management",
			Dependencies: []string{"org", "users"},
			Permissions: map[string]Permission{
				"roles:read": {
					Slug: "roles:read", Name: "View roles",
					Category: CategoryRoles, RequiresOrg: true,
				},
				"roles:create": {
					Slug: "roles:create", Name: "Create roles",
					Category: CategoryRoles, RequiresOrg: true,
					Dependencies: []string{"roles:read"},
				},
				"roles:assign": {
					Slug: "roles:assign", Name: "Assign roles to users",
					Category: CategoryRoles, RequiresOrg: true,
					Dependencies: []string{"roles:read", "users:read"}, Critical: true,
				},
				"roles:remove": {
					Slug: "roles:remove", Name: "Remove role assignments",
					Category: CategoryRoles, RequiresOrg: true,
					Dependencies: []string{"roles:read"}, Critical: true,
				},
			},
		},
		Module{
			Name:        "admin",
			Description: "Platform administration",
			Permissions: map[string]Permission{
				"admin:access": {
					Slug: "admin:access", Name: "Access admin area",
					Category: CategoryAdmin, Critical: true,
				},
				"admin:impersonate": {
					Slug: "admin:impersonate", Name: "Impersonate users",
					Category: CategoryAdmin, Critical: true,
					Dependencies: []string{"admin:access"},
				},
			},
		},
		Module{
			Name:        "system",
			Description: "Cross-tenant system operations",
			Permissions: map[string]Permission{
				"system:manage": {
					Slug: "system:manage", Name: "Manage system settings",
					Category: CategorySystem, Critical: true,
				},
				"system:audit": {
					Slug: "system:audit", Name: "Read audit logs",
					Category: CategorySystem,
				},
			},
		},
	)
}
