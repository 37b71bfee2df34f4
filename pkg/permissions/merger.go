package permissions

import (
	"fmt"
)

// MergeOptions controls collision behavior during a merge
type MergeOptions struct {
	// AllowOverride lets an extension replace an existing slug instead of
	// failing. Overridden slugs are reported in the result.
	AllowOverride bool

	// Strict fails the merge on slug collisions. When false, colliding slugs
	// are skipped and reported as warnings.
	Strict bool
}

// DefaultMergeOptions match the safe defaults: collisions are fatal
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{AllowOverride: false, Strict: true}
}

// MergeResult holds the merged registry plus what happened during the merge
type MergeResult struct {
	Registry   *Registry           `json:"registry"`
	Overridden []string            `json:"overridden,omitempty"`
	Skipped    []string            `json:"skipped,omitempty"`
	Warnings   []ValidationWarning `json:"warnings,omitempty"`
}

// Merge combines the core registry with extension-supplied permission
// modules. Permission slugs are security-sensitive identifiers, so a slug
// collision between an extension and the core (or between two extensions)
// fails loudly by default instead of silently shifting a permission's
// meaning.
func Merge(core *Registry, extensions []Module, opts MergeOptions) (*MergeResult, error) {
	result := &MergeResult{}

	merged := &Registry{Modules: make(map[string]Module, len(core.Modules))}
	for name, m := range core.Modules {
		merged.Modules[name] = cloneModule(m)
	}

	seen := merged.slugSet()

	for _, ext := range extensions {
		if ext.Name == "" {
			return nil, fmt.Errorf("extension module with empty name")
		}

		for key := range ext.Permissions {
			if !isNamespaced(key) {
				result.Warnings = append(result.Warnings, ValidationWarning{
					Module:  ext.Name,
					Key:     key,
					Message: fmt.Sprintf("permission key %q is not namespaced (expected %q prefix)", key, ext.Name+":"),
				})
			}
		}

		target, exists := merged.Modules[ext.Name]
		if !exists {
			target = Module{
				Name:         ext.Name,
				Description:  ext.Description,
				Dependencies: append([]string(nil), ext.Dependencies...),
				Permissions:  make(map[string]Permission, len(ext.Permissions)),
			}
		}

		for slug, perm := range ext.Permissions {
			if owner, collides := seen[slug]; collides {
				switch {
				case opts.AllowOverride:
					result.Overridden = append(result.Overridden, slug)
				case opts.Strict:
					return nil, &CollisionError{Slug: slug, Module: ext.Name}
				default:
					result.Skipped = append(result.Skipped, slug)
					continue
				}
				// Drop the previous definition so the override is the only one.
				if owner != ext.Name {
					prev := merged.Modules[owner]
					delete(prev.Permissions, slug)
					merged.Modules[owner] = prev
				}
			}
			target.Permissions[slug] = perm
			seen[slug] = ext.Name
		}

		merged.Modules[ext.Name] = target
	}

	merged.recomputeMetadata()
	result.Registry = merged
	return result, nil
}

// cloneModule deep-copies a module so merges never mutate the core catalog
func cloneModule(m Module) Module {
	out := Module{
		Name:         m.Name,
		Description:  m.Description,
		Dependencies: append([]string(nil), m.Dependencies...),
		Permissions:  make(map[string]Permission, len(m.Permissions)),
	}
	for slug, p := range m.Permissions {
		out.Permissions[slug] = p
	}
	return out
}
