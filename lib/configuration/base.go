package configuration

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/oops"
)

// Base is one persisted configuration document.
type Base struct {
	path       string
	properties map[string]Value
}

// NewBase returns an empty base backed by path. Nothing is written until the
// first Commit or setter call.
func NewBase(path string) *Base {
	return &Base{
		path:       path,
		properties: make(map[string]Value),
	}
}

// LoadBase parses the TOML document at path. A missing file yields an error
// wrapping ErrBaseFileMissing.
func LoadBase(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, oops.Wrapf(ErrBaseFileMissing, "%s", path)
		}
		return nil, oops.Wrapf(err, "failed to read configuration base %s", path)
	}
	return parseBase(path, data)
}

func parseBase(path string, data []byte) (*Base, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Wrapf(err, "failed to parse configuration base %s", path)
	}
	b := NewBase(path)
	for _, key := range sortedKeys(doc) {
		v, err := FromAny(doc[key])
		if err != nil {
			return nil, oops.Wrapf(err, "configuration base %s key %q", path, key)
		}
		b.properties[key] = v
	}
	return b, nil
}

func (b *Base) Path() string { return b.path }

func (b *Base) Len() int { return len(b.properties) }

func (b *Base) IsEmpty() bool { return len(b.properties) == 0 }

// Keys returns the property names in sorted order.
func (b *Base) Keys() []string { return sortedKeys(b.properties) }

func (b *Base) Get(key string) (Value, bool) {
	v, ok := b.properties[key]
	return v, ok
}

// The typed getters below report false both when the key is absent and when
// it holds a value of another kind.

func (b *Base) GetInt64(key string) (int64, bool) {
	v, ok := b.properties[key]
	if !ok {
		return 0, false
	}
	return v.AsInt64()
}

func (b *Base) GetString(key string) (string, bool) {
	v, ok := b.properties[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (b *Base) GetBool(key string) (bool, bool) {
	v, ok := b.properties[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (b *Base) GetStringArray(key string) ([]string, bool) {
	v, ok := b.properties[key]
	if !ok {
		return nil, false
	}
	return v.AsStringArray()
}

func (b *Base) GetTable(key string) (map[string]Value, bool) {
	v, ok := b.properties[key]
	if !ok {
		return nil, false
	}
	return v.AsTable()
}

// GetJSON returns the JSON encoding of the value stored under key.
func (b *Base) GetJSON(key string) ([]byte, bool) {
	v, ok := b.properties[key]
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return data, true
}

// ToJSON encodes every property as one JSON object.
func (b *Base) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

func (b *Base) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.document())
}

func (b *Base) document() map[string]any {
	doc := make(map[string]any, len(b.properties))
	for k, v := range b.properties {
		doc[k] = v.Any()
	}
	return doc
}

// Commit serializes the whole document and atomically replaces the backing
// file with it.
func (b *Base) Commit() error {
	data, err := toml.Marshal(b.document())
	if err != nil {
		return oops.Wrapf(err, "failed to encode configuration base %s", b.path)
	}
	return writeFileAtomic(b.path, data)
}

// Set stores v under key and commits. When the commit fails the previous
// in-memory state is restored. Keys and strings must be valid UTF-8 so the
// document stays parseable.
func (b *Base) Set(key string, v Value) error {
	if !v.IsValid() {
		return oops.Wrapf(ErrUnsupportedValue, "key %q", key)
	}
	if !utf8.ValidString(key) || !v.ValidUTF8() {
		return oops.Wrapf(ErrUnsupportedValue, "key %q is not valid UTF-8", key)
	}
	prev, had := b.properties[key]
	b.properties[key] = v
	if err := b.Commit(); err != nil {
		if had {
			b.properties[key] = prev
		} else {
			delete(b.properties, key)
		}
		return err
	}
	return nil
}

// SetJSON decodes raw as JSON and stores the result under key.
func (b *Base) SetJSON(key, raw string) error {
	v, err := ParseJSONValue(raw)
	if err != nil {
		return oops.Wrapf(err, "key %q", key)
	}
	return b.Set(key, v)
}

func (b *Base) SetInt64(key string, value int64) error {
	return b.Set(key, Int(value))
}

func (b *Base) SetString(key, value string) error {
	return b.Set(key, String(value))
}

func (b *Base) SetBool(key string, value bool) error {
	return b.Set(key, Bool(value))
}

func (b *Base) SetStringArray(key string, value []string) error {
	return b.Set(key, StringArray(value))
}

// Remove deletes key and commits. Removing an absent key is ErrKeyNotFound.
func (b *Base) Remove(key string) error {
	prev, had := b.properties[key]
	if !had {
		return oops.Wrapf(ErrKeyNotFound, "%s: %q", b.path, key)
	}
	delete(b.properties, key)
	if err := b.Commit(); err != nil {
		b.properties[key] = prev
		return err
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return oops.Wrapf(err, "failed to create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return oops.Wrapf(err, "failed to create temporary file for %s", path)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.WithFields(logger.Fields{
				"at":   "configuration.writeFileAtomic",
				"path": tmpName,
			}).WithError(rmErr).Warn("failed_to_remove_temporary_file")
		}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return oops.Wrapf(err, "failed to write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return oops.Wrapf(err, "failed to sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return oops.Wrapf(err, "failed to close %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return oops.Wrapf(err, "failed to chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return oops.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
