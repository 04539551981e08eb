package bundle

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/util"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/samber/oops"
)

var (
	ErrPathEscapes  = errors.New("path escapes bundle directory")
	ErrFileNotFound = errors.New("bundle file not found")
)

// Bundle is one installed mini-application.
type Bundle struct {
	UUID string
	// BasePath is the scope directory holding the bundle's files.
	BasePath string
	// Folders maps each declared sub-folder to its absolute location.
	Folders map[string]string
}

func fromManifest(scopeDir string, manifest *configuration.Base) (*Bundle, error) {
	if err := configuration.ManifestSchema.Validate(manifest); err != nil {
		return nil, err
	}
	uuid, _ := manifest.GetString("uuid")
	folders, _ := manifest.GetStringArray("folders")
	b := &Bundle{
		UUID:     uuid,
		BasePath: scopeDir,
		Folders:  make(map[string]string, len(folders)),
	}
	for _, f := range folders {
		resolved, err := b.Resolve(f)
		if err != nil {
			return nil, oops.Wrapf(err, "bundle %s declares folder %q", uuid, f)
		}
		b.Folders[f] = resolved
	}
	return b, nil
}

// Resolve maps a slash separated path relative to the bundle onto the
// filesystem. The result never leaves BasePath.
func (b *Bundle) Resolve(rel string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+rel), "/")
	resolved := filepath.Join(b.BasePath, filepath.FromSlash(cleaned))

	base := filepath.Clean(b.BasePath)
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		log.WithFields(logger.Fields{
			"at":            "(Bundle).Resolve",
			"reason":        "path_traversal_attempt",
			"bundle":        b.UUID,
			"resolved_path": resolved,
		}).Warn("potential path traversal blocked")
		return "", oops.Wrapf(ErrPathEscapes, "%q", rel)
	}
	return resolved, nil
}

// ReadFile reads a file of the bundle. An empty rel selects index. Missing
// files and directories yield ErrFileNotFound.
func (b *Bundle) ReadFile(rel, index string) (string, []byte, error) {
	if strings.Trim(rel, "/") == "" {
		rel = index
	}
	p, err := b.Resolve(rel)
	if err != nil {
		return "", nil, err
	}
	if !util.IsRegularFile(p) {
		return p, nil, oops.Wrapf(ErrFileNotFound, "%s/%s", b.UUID, rel)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil, oops.Wrapf(ErrFileNotFound, "%s/%s", b.UUID, rel)
		}
		return p, nil, oops.Wrapf(err, "failed to read %s", p)
	}
	return p, data, nil
}
