// Package snapshot loads snapshot directories and persists processing runs.
//
// A snapshot directory has this layout; every part is optional:
//
//	configs/                      device configurations
//	hosts/                        host JSON descriptions
//	iptables/                     overlay files referenced by hosts
//	batfish/runtime_data.json     runtime interface facts
//	batfish/layer1_topology.json  physical links
//	snapshot.yaml                 name, description and labels
package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/batfish/batfish-sub054/internal/vendor"
)

const (
	ConfigsDir   = "configs"
	HostsDir     = "hosts"
	IptablesDir  = "iptables"
	RuntimeFile  = "batfish/runtime_data.json"
	Layer1File   = "batfish/layer1_topology.json"
	MetadataFile = "snapshot.yaml"
)

// ErrNotDirectory is returned by Load when the path is not a directory.
var ErrNotDirectory = errors.New("snapshot path is not a directory")

// File is one input file. Path is slash-separated and relative to the
// snapshot root.
type File struct {
	Path        string
	Text        string
	Fingerprint string
}

// Metadata is the optional snapshot.yaml content.
type Metadata struct {
	Name        string            `yaml:"name" json:"name,omitempty"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Labels      map[string]string `yaml:"labels" json:"labels,omitempty"`
}

// Snapshot is a loaded snapshot directory.
type Snapshot struct {
	Dir      string
	Metadata Metadata
	// Files are device and host configurations, parsed and converted.
	Files []File
	// Overlays are parsed but only applied on top of the hosts that
	// reference them.
	Overlays []File
	Layer1   *vendor.ConversionContext
	Runtime  *vendor.RuntimeData
}

// Load reads the snapshot rooted at dir.
func Load(dir string) (*Snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	s := &Snapshot{
		Dir:     dir,
		Layer1:  vendor.EmptyConversionContext(),
		Runtime: vendor.EmptyRuntimeData(),
	}

	for _, sub := range []string{ConfigsDir, HostsDir} {
		files, err := readTree(dir, sub)
		if err != nil {
			return nil, err
		}
		s.Files = append(s.Files, files...)
	}
	if s.Overlays, err = readTree(dir, IptablesDir); err != nil {
		return nil, err
	}

	if data, ok, err := readOptional(dir, RuntimeFile); err != nil {
		return nil, err
	} else if ok {
		if s.Runtime, err = vendor.ParseRuntimeData(data); err != nil {
			return nil, fmt.Errorf("%s: %w", RuntimeFile, err)
		}
	}
	if data, ok, err := readOptional(dir, Layer1File); err != nil {
		return nil, err
	} else if ok {
		if s.Layer1, err = vendor.ParseLayer1Topology(data); err != nil {
			return nil, fmt.Errorf("%s: %w", Layer1File, err)
		}
	}
	if data, ok, err := readOptional(dir, MetadataFile); err != nil {
		return nil, err
	} else if ok {
		if err := yaml.Unmarshal(data, &s.Metadata); err != nil {
			return nil, fmt.Errorf("%s: %w", MetadataFile, err)
		}
	}
	return s, nil
}

// readTree returns every regular file below root/sub, sorted by path.
// Hidden files are skipped.
func readTree(root, sub string) ([]File, error) {
	base := filepath.Join(root, sub)
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var files []File
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != base {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:        filepath.ToSlash(rel),
			Text:        string(data),
			Fingerprint: Fingerprint(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sub, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func readOptional(root, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}

// Fingerprint is the hex xxh3 digest of data.
func Fingerprint(data []byte) string {
	h := xxh3.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint digests every path and file fingerprint, overlays included.
// Two snapshots with the same inputs have the same fingerprint.
func (s *Snapshot) Fingerprint() string {
	h := xxh3.New()
	for _, set := range [][]File{s.Files, s.Overlays} {
		for _, f := range set {
			h.Write([]byte(f.Path))
			h.Write([]byte{0})
			h.Write([]byte(f.Fingerprint))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Overlay returns the overlay file at path, if present.
func (s *Snapshot) Overlay(path string) (File, bool) {
	path = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "./")
	for _, f := range s.Overlays {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}
