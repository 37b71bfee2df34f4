package permissions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModuleManifest is the on-disk form of an extension permission module
type ModuleManifest struct {
	Name         string                `yaml:"name"`
	Description  string                `yaml:"description,omitempty"`
	Dependencies []string              `yaml:"dependencies,omitempty"`
	Permissions  map[string]Permission `yaml:"permissions"`
}

// LoadModuleManifest loads and parses an extension module manifest from a file
func LoadModuleManifest(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest ModuleManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Name == "" {
		return nil, fmt.Errorf("manifest %s: module name is required", path)
	}

	module := Module{
		Name:         manifest.Name,
		Description:  manifest.Description,
		Dependencies: manifest.Dependencies,
		Permissions:  make(map[string]Permission, len(manifest.Permissions)),
	}
	for slug, perm := range manifest.Permissions {
		// The map key is authoritative for the slug.
		perm.Slug = slug
		module.Permissions[slug] = perm
	}

	return &module, nil
}

// LoadModulesFromDir loads every *.yaml / *.yml manifest in a directory,
// sorted by filename so merges are deterministic
func LoadModulesFromDir(dir string) ([]Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	var modules []Module
	for _, path := range paths {
		module, err := LoadModuleManifest(path)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		modules = append(modules, *module)
	}

	return modules, nil
}

// SaveModuleManifest writes an extension module back to a manifest file
func SaveModuleManifest(module *Module, path string) error {
	manifest := ModuleManifest{
		Name:         module.Name,
		Description:  module.Description,
		Dependencies: module.Dependencies,
		Permissions:  module.Permissions,
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}
