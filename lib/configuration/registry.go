package configuration

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/samber/oops"
)

var log = logger.GetHypefuseLogger()

const (
	// ConfigDir is the directory inside a scope holding its bases.
	ConfigDir = "config"
	// ManifestBase is the base name of a bundle manifest.
	ManifestBase = "bundle"
)

// Registry is the in-memory index of loaded bases keyed by path.
type Registry struct {
	root  string
	bases map[string]*Base
}

// NewRegistry creates an empty registry whose scopes live under root.
func NewRegistry(root string) *Registry {
	return &Registry{
		root:  filepath.Clean(root),
		bases: make(map[string]*Base),
	}
}

func (r *Registry) Root() string { return r.root }

func (r *Registry) Len() int { return len(r.bases) }

// Init drops every loaded base. A reload is Init followed by LoadAll; the
// result never merges with the previous contents.
func (r *Registry) Init() {
	r.bases = make(map[string]*Base)
}

// LoadAll recursively loads every regular file below dir as a base. Files
// that fail to load are logged and skipped. Hidden files, which include
// temporaries left by an interrupted commit, are ignored.
func (r *Registry) LoadAll(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return oops.Wrapf(err, "cannot scan configuration directory %s", dir)
	}
	if !info.IsDir() {
		return oops.Errorf("configuration path %s is not a directory", dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.WithFields(logger.Fields{
				"at":   "(Registry).LoadAll",
				"path": path,
			}).WithError(walkErr).Error("error_scanning_configuration")
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := r.LoadBase(path); err != nil {
			log.WithFields(logger.Fields{
				"at":   "(Registry).LoadAll",
				"path": path,
			}).WithError(err).Error("error_loading_configuration_base")
		}
		return nil
	})
}

// LoadBase (re)loads the document at path, replacing any existing entry.
// When the file is gone the stale entry is dropped and the error wraps
// ErrBaseFileMissing.
func (r *Registry) LoadBase(path string) error {
	path = filepath.Clean(path)
	b, err := LoadBase(path)
	if err != nil {
		if errors.Is(err, ErrBaseFileMissing) {
			delete(r.bases, path)
		}
		return err
	}
	r.bases[path] = b
	log.WithFields(logger.Fields{
		"at":         "(Registry).LoadBase",
		"path":       path,
		"properties": b.Len(),
	}).Debug("configuration_base_loaded")
	return nil
}

// UnloadBase commits the base at path and removes it from the registry.
func (r *Registry) UnloadBase(path string) error {
	path = filepath.Clean(path)
	b, ok := r.bases[path]
	if !ok {
		return oops.Wrapf(ErrBaseNotFound, "%s", path)
	}
	if err := b.Commit(); err != nil {
		return err
	}
	delete(r.bases, path)
	return nil
}

func (r *Registry) Base(path string) (*Base, bool) {
	b, ok := r.bases[filepath.Clean(path)]
	return b, ok
}

// Paths returns every loaded path in sorted order.
func (r *Registry) Paths() []string {
	return sortedKeys(r.bases)
}

// BasesOf returns every base whose path starts with prefix, in path order.
func (r *Registry) BasesOf(prefix string) []*Base {
	var out []*Base
	for _, p := range r.Paths() {
		if strings.HasPrefix(p, prefix) {
			out = append(out, r.bases[p])
		}
	}
	return out
}

// BasesOfBundle returns the bases of a scope, excluding its manifest.
func (r *Registry) BasesOfBundle(uuid string) []*Base {
	prefix := r.scopeConfigDir(uuid) + string(filepath.Separator)
	var out []*Base
	for _, b := range r.BasesOf(prefix) {
		if filepath.Base(b.Path()) == ManifestBase {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (r *Registry) scopeConfigDir(uuid string) string {
	return filepath.Join(r.root, uuid, ConfigDir)
}

// BasePath returns the path of base within scope uuid.
func (r *Registry) BasePath(uuid, base string) string {
	return filepath.Join(r.scopeConfigDir(uuid), base)
}

func (r *Registry) BaseOfBundle(uuid, base string) (*Base, bool) {
	if ValidateName(uuid) != nil || ValidateName(base) != nil {
		return nil, false
	}
	return r.Base(r.BasePath(uuid, base))
}

// CreateBaseOfBundle creates and persists an empty base. It fails with
// ErrBaseExists when the base is already loaded or present on disk.
func (r *Registry) CreateBaseOfBundle(uuid, base string) (*Base, error) {
	if err := validateNames(uuid, base); err != nil {
		return nil, err
	}
	path := r.BasePath(uuid, base)
	if _, ok := r.bases[path]; ok {
		return nil, oops.Wrapf(ErrBaseExists, "%s", path)
	}
	if _, err := os.Lstat(path); err == nil {
		return nil, oops.Wrapf(ErrBaseExists, "%s exists on disk", path)
	}
	b := NewBase(path)
	if err := b.Commit(); err != nil {
		return nil, err
	}
	r.bases[path] = b
	log.WithFields(logger.Fields{
		"at":   "(Registry).CreateBaseOfBundle",
		"path": path,
	}).Info("configuration_base_created")
	return b, nil
}

// DeleteBaseOfBundle removes the backing file and then the registry entry.
// A base that is not loaded is ErrBaseNotFound and nothing on disk is
// touched. An entry whose file has already vanished is dropped.
func (r *Registry) DeleteBaseOfBundle(uuid, base string) error {
	if err := validateNames(uuid, base); err != nil {
		return err
	}
	path := r.BasePath(uuid, base)
	if _, ok := r.bases[path]; !ok {
		return oops.Wrapf(ErrBaseNotFound, "%s", path)
	}
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return oops.Wrapf(err, "failed to remove configuration base %s", path)
		}
		log.WithFields(logger.Fields{
			"at":   "(Registry).DeleteBaseOfBundle",
			"path": path,
		}).Warn("configuration_base_file_already_missing")
	}
	delete(r.bases, path)
	log.WithFields(logger.Fields{
		"at":   "(Registry).DeleteBaseOfBundle",
		"path": path,
	}).Info("configuration_base_deleted")
	return nil
}

// Commit persists every loaded base, stopping at the first failure.
func (r *Registry) Commit() error {
	for _, p := range r.Paths() {
		if err := r.bases[p].Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Scopes returns the distinct scope names that have at least one base.
func (r *Registry) Scopes() []string {
	seen := make(map[string]struct{})
	for p := range r.bases {
		if scope, _, ok := r.splitPath(p); ok {
			seen[scope] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// splitPath maps <root>/<scope>/config/<base...> to (scope, base).
func (r *Registry) splitPath(path string) (string, string, bool) {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 || parts[0] == ".." || parts[1] != ConfigDir {
		return "", "", false
	}
	return parts[0], strings.Join(parts[2:], "/"), true
}

// Tree returns every base grouped by scope and base name. Bases outside the
// root layout are omitted.
func (r *Registry) Tree() map[string]map[string]*Base {
	tree := make(map[string]map[string]*Base)
	for p, b := range r.bases {
		scope, name, ok := r.splitPath(p)
		if !ok {
			continue
		}
		if tree[scope] == nil {
			tree[scope] = make(map[string]*Base)
		}
		tree[scope][name] = b
	}
	return tree
}

// JSON encodes the registry as {"<scope>": {"<base>": {...}}}.
func (r *Registry) JSON() ([]byte, error) {
	data, err := json.Marshal(r.Tree())
	if err != nil {
		return nil, oops.Wrapf(err, "failed to encode configuration registry")
	}
	return data, nil
}

// Document returns the registry as plain nested maps, suitable for any
// generic encoder.
func (r *Registry) Document() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any)
	for scope, bases := range r.Tree() {
		out[scope] = make(map[string]map[string]any, len(bases))
		for name, b := range bases {
			out[scope][name] = b.document()
		}
	}
	return out
}

// ValidateName checks that name can be used as a single path segment.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) ||
		strings.HasPrefix(name, ".") {
		return oops.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

func validateNames(names ...string) error {
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return err
		}
	}
	return nil
}
