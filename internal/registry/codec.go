// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/uidreg/uidreg/pkg/uid"
)

// Format is a registry file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// fileFormat is the on-disk layout shared by every codec.
type fileFormat struct {
	Entries map[string]Entry `yaml:"entries" toml:"entries" json:"entries"`
}

// FormatFor picks the codec from the file extension. Unknown extensions use
// YAML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Marshal encodes r with keys in sorted order.
func Marshal(r *Registry, f Format) ([]byte, error) {
	out := fileFormat{Entries: make(map[string]Entry, r.Len())}
	for k, e := range r.Entries() {
		out.Entries[string(k)] = e
	}

	switch f {
	case FormatTOML:
		return toml.Marshal(out)
	case FormatJSON:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown registry format %q", f)
	}
}

// Unmarshal decodes a registry and checks every key and entry.
func Unmarshal(data []byte, f Format) (*Registry, error) {
	var in fileFormat
	var err error
	switch f {
	case FormatTOML:
		err = toml.Unmarshal(data, &in)
	case FormatJSON:
		err = json.Unmarshal(data, &in)
	case FormatYAML:
		err = yaml.Unmarshal(data, &in)
	default:
		err = fmt.Errorf("unknown registry format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}

	entries := make(map[uid.UID]Entry, len(in.Entries))
	for k, e := range in.Entries {
		if _, err := uid.Parse(uid.UID(k)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
		}
		if e.File == "" {
			return nil, fmt.Errorf("%w: entry %q has no file", ErrInvalidRegistry, k)
		}
		entries[uid.UID(k)] = e
	}
	return New(entries), nil
}

// Load reads the registry at path, choosing the codec by extension.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	r, err := Unmarshal(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Save writes r to path atomically: the data goes to a temporary file in the
// same directory, which is then renamed over path.
func Save(path string, r *Registry) (err error) {
	data, err := Marshal(r, FormatFor(path))
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync registry: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod registry: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
