// Package permissions provides the static permission catalog and the merge
// logic for extension-supplied permission modules.
//
// # Overview
//
// Permissions are identified by a globally unique, namespaced slug such as
// "org:read". They are grouped into named modules, which are the unit of
// extension and collision checking. The core catalog (CoreRegistry) covers
// organization, user, role, admin and system operations; extensions
// contribute additional modules, either programmatically or through YAML
// manifests loaded from a directory.
//
// # Merging
//
// Merge combines the core registry with extension modules. Slug collisions
// are fatal by default (MergeOptions.Strict) because a silently redefined
// permission changes the meaning of every role that grants it. Overrides can
// be requested explicitly (MergeOptions.AllowOverride) and are reported in
// the MergeResult. Extension keys that do not follow the "<module>:<action>"
// convention produce advisory warnings, never errors.
//
// # Dependency validation
//
// Permissions may declare dependencies on other slugs (granting "org:update"
// without "org:read" is almost always a configuration mistake).
// Registry.ValidateDependencies reports missing dependencies for a candidate
// grant set. The report is advisory: callers surface it to operators, nothing
// in the assignment path blocks on it.
package permissions
