package permissions

import (
	"time"
)

// Category groups permissions by the area of the product they guard
type Category string

const (
	CategoryAdmin        Category = "admin"
	CategoryOrganization Category = "organization"
	CategoryUsers        Category = "users"
	CategoryRoles        Category = "roles"
	CategorySystem       Category = "system"
)

// Permission is a single permission definition. Identity is the slug;
// definitions are immutable once registered.
type Permission struct {
	Slug         string   `json:"slug" yaml:"slug"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category     Category `json:"category" yaml:"category"`
	RequiresOrg  bool     `json:"requires_org" yaml:"requires_org"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Critical     bool     `json:"critical" yaml:"critical"`
}

// Module is a named group of permissions and the unit of extension
// and collision checking.
type Module struct {
	Name         string                `json:"name" yaml:"name"`
	Description  string                `json:"description,omitempty" yaml:"description,omitempty"`
	Dependencies []string              `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Permissions  map[string]Permission `json:"permissions" yaml:"permissions"`
}

// Metadata describes a registry snapshot
type Metadata struct {
	TotalModules     int       `json:"total_modules"`
	TotalPermissions int       `json:"total_permissions"`
	Generated        time.Time `json:"generated"`
}

// Registry is the read-only permission catalog
type Registry struct {
	Modules  map[string]Module `json:"modules"`
	Metadata Metadata          `json:"metadata"`
}

// DependencyReport lists declared permission dependencies missing from a
// candidate grant set. It is advisory only and never blocks a grant.
type DependencyReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
}

// CollisionError is returned when an extension redeclares a slug that
// already exists in the merged registry.
type CollisionError struct {
	Slug   string
	Module string
}

func (e *CollisionError) Error() string {
	return "permission slug collision: " + e.Slug + " redeclared by module " + e.Module
}

// ValidationWarning flags an extension permission key that does not follow
// the "<module>:<action>" namespacing convention. Advisory only.
type ValidationWarning struct {
	Module  string `json:"module"`
	Key     string `json:"key"`
	Message string `json:"message"`
}
