package bundle

import (
	"path/filepath"
	"sort"

	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

var log = logger.GetHypefuseLogger()

// Manager is the bundle table, rebuilt from the registry on every Init.
type Manager struct {
	bundles map[string]*Bundle
}

func NewManager() *Manager {
	return &Manager{bundles: make(map[string]*Bundle)}
}

// Init discovers every scope of reg that carries a manifest base. Bundles
// with a malformed manifest are logged and left out.
func (m *Manager) Init(reg *configuration.Registry) {
	m.bundles = make(map[string]*Bundle)
	for _, scope := range reg.Scopes() {
		manifest, ok := reg.BaseOfBundle(scope, configuration.ManifestBase)
		if !ok {
			continue
		}
		b, err := fromManifest(filepath.Join(reg.Root(), scope), manifest)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":    "(Manager).Init",
				"scope": scope,
			}).WithError(err).Error("error_loading_bundle")
			continue
		}
		if b.UUID != scope {
			log.WithFields(logger.Fields{
				"at":    "(Manager).Init",
				"scope": scope,
				"uuid":  b.UUID,
			}).Warn("bundle_uuid_differs_from_directory")
		}
		if prev, dup := m.bundles[b.UUID]; dup {
			log.WithFields(logger.Fields{
				"at":      "(Manager).Init",
				"uuid":    b.UUID,
				"kept":    prev.BasePath,
				"skipped": b.BasePath,
			}).Warn("duplicate_bundle_uuid")
			continue
		}
		m.bundles[b.UUID] = b
	}
	log.WithFields(logger.Fields{
		"at":      "(Manager).Init",
		"bundles": len(m.bundles),
	}).Info("bundles_loaded")
}

func (m *Manager) Get(uuid string) (*Bundle, bool) {
	b, ok := m.bundles[uuid]
	return b, ok
}

// BasePath returns the directory of bundle uuid.
func (m *Manager) BasePath(uuid string) (string, bool) {
	b, ok := m.bundles[uuid]
	if !ok {
		return "", false
	}
	return b.BasePath, true
}

// List returns the bundles sorted by UUID.
func (m *Manager) List() []*Bundle {
	out := make([]*Bundle, 0, len(m.bundles))
	for _, b := range m.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

func (m *Manager) Len() int { return len(m.bundles) }
