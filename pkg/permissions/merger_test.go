package permissions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extModule(name string, slugs ...string) Module {
	m := Module{Name: name, Permissions: make(map[string]Permission, len(slugs))}
	for _, slug := range slugs {
		m.Permissions[slug] = Permission{Slug: slug, Name: slug, Category: CategoryOrganization}
	}
	return m
}

func TestMerge_NewModule(t *testing.T) {
	core := CoreRegistry()
	before := core.Metadata.TotalPermissions

	result, err := Merge(core, []Module{extModule("billing", "billing:read", "billing:charge")}, DefaultMergeOptions())
	require.NoError(t, err)

	assert.Contains(t, result.Registry.Modules, "billing")
	assert.Equal(t, before+2, result.Registry.Metadata.TotalPermissions)
	assert.Empty(t, result.Overridden)
	assert.Empty(t, result.Warnings)

	// The core catalog must not be mutated by the merge.
	_, ok := core.BySlug("billing:read")
	assert.False(t, ok)
}

func TestMerge_ExtendsExistingModuleKeyByKey(t *testing.T) {
	core := CoreRegistry()

	result, err := Merge(core, []Module{extModule("org", "org:archive")}, DefaultMergeOptions())
	require.NoError(t, err)

	merged := result.Registry.Modules["org"]
	assert.Contains(t, merged.Permissions, "org:archive")
	assert.Contains(t, merged.Permissions, "org:read")
}

func TestMerge_CollisionBetweenExtensions(t *testing.T) {
	// Two extensions declaring the same slug, neither in the core.
	core := NewRegistry()
	exts := []Module{
		extModule("alpha", "org:read"),
		extModule("beta", "org:read"),
	}

	_, err := Merge(core, exts, MergeOptions{Strict: true})
	require.Error(t, err)

	var collision *CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "org:read", collision.Slug)
	assert.Equal(t, "beta", collision.Module)
}

func TestMerge_CollisionWithCore(t *testing.T) {
	core := CoreRegistry()

	_, err := Merge(core, []Module{extModule("rogue", "org:read")}, DefaultMergeOptions())
	require.Error(t, err)

	var collision *CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "org:read", collision.Slug)
	assert.Equal(t, "rogue", collision.Module)
}

func TestMerge_AllowOverride(t *testing.T) {
	core := NewRegistry()
	exts := []Module{
		extModule("alpha", "org:read"),
		extModule("beta", "org:read"),
	}

	result, err := Merge(core, exts, MergeOptions{Strict: true, AllowOverride: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"org:read"}, result.Overridden)

	// Exactly one definition survives, owned by the overriding module.
	p, ok := result.Registry.BySlug("org:read")
	require.True(t, ok)
	assert.Equal(t, "org:read", p.Slug)
	assert.NotContains(t, result.Registry.Modules["alpha"].Permissions, "org:read")
	assert.Contains(t, result.Registry.Modules["beta"].Permissions, "org:read")
	assert.Equal(t, 1, result.Registry.Metadata.TotalPermissions)
}

func TestMerge_NonStrictSkipsCollisions(t *testing.T) {
	core := CoreRegistry()

	result, err := Merge(core, []Module{extModule("rogue", "org:read")}, MergeOptions{Strict: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"org:read"}, result.Skipped)

	// The core definition wins.
	assert.Contains(t, result.Registry.Modules["org"].Permissions, "org:read")
}

func TestMerge_NamespacingAdvisory(t *testing.T) {
	core := CoreRegistry()

	result, err := Merge(core, []Module{extModule("billing", "create", "billing:create")}, DefaultMergeOptions())
	require.NoError(t, err, "namespace violations are advisory, not fatal")

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "billing", result.Warnings[0].Module)
	assert.Equal(t, "create", result.Warnings[0].Key)

	// Both keys are merged regardless of the warning.
	_, ok := result.Registry.BySlug("create")
	assert.True(t, ok)
	_, ok = result.Registry.BySlug("billing:create")
	assert.True(t, ok)
}

func TestMerge_EmptyModuleName(t *testing.T) {
	_, err := Merge(CoreRegistry(), []Module{extModule("")}, DefaultMergeOptions())
	assert.Error(t, err)
}
