package permissions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_InitialLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yaml"), []byte(billingManifest), 0644))

	w, err := NewWatcher(dir, CoreRegistry(), DefaultMergeOptions(), nil, nil)
	require.NoError(t, err)
	defer w.Close()

	reg := w.Current()
	require.NotNil(t, reg)
	_, ok := reg.BySlug("billing:read")
	assert.True(t, ok)
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	dir := t.TempDir()

	reloads := make(chan *MergeResult, 4)
	w, err := NewWatcher(dir, CoreRegistry(), DefaultMergeOptions(), func(r *MergeResult) {
		reloads <- r
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	// Initial load fires once with no extensions.
	select {
	case r := <-reloads:
		_, ok := r.Registry.BySlug("billing:read")
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial load")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yaml"), []byte(billingManifest), 0644))

	select {
	case r := <-reloads:
		_, ok := r.Registry.BySlug("billing:read")
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_MergeFailureKeepsPreviousRegistry(t *testing.T) {
	dir := t.TempDir()

	errs := make(chan error, 4)
	w, err := NewWatcher(dir, CoreRegistry(), DefaultMergeOptions(), nil, func(err error) {
		errs <- err
	})
	require.NoError(t, err)
	defer w.Close()

	before := w.Current()

	// A manifest colliding with the core must be rejected.
	rogue := "name: rogue\npermissions:\n  \"org:read\":\n    name: Collides\n    category: organization\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rogue.yaml"), []byte(rogue), 0644))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for merge error")
	}

	assert.Same(t, before, w.Current(), "failed reload must not replace the registry")
}
