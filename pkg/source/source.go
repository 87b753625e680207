// Package source locates DRM files on disk and loads them, unwrapping
// zstd, gzip, zlib, lz4 and s2 compressed copies transparently.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/encoding"
)

// ErrNotFound is returned when a name is not present in a source.
var ErrNotFound = errors.New("file not found")

// Extensions recognized as DRM files. Compressed copies carry a second
// extension (level.drm.zst); the wrapper is detected from content, not name.
var compressedExts = []string{".zst", ".gz", ".zz", ".lz4", ".sz"}

// File is a loaded, decompressed DRM file.
type File struct {
	Name        string // normalized name, e.g. "levels/tomb01.drm"
	Path        string // path on disk
	Compression Compression
	Fingerprint uint64 // xxhash of the decompressed bytes
	Data        []byte
}

// Archive parses a private copy of the file's bytes. Parsing relocates in
// place, so f.Data stays untouched and can be parsed again.
func (f *File) Archive(opts drm.Options) (*drm.Archive, error) {
	buf := make([]byte, len(f.Data))
	copy(buf, f.Data)
	a, err := drm.ParseWithOptions(buf, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return a, nil
}

// Fingerprint returns the xxhash64 of data.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ReadFile loads and decompresses one file.
func ReadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	data, kind, err := Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{
		Name:        Key(filepath.Base(path)),
		Path:        path,
		Compression: kind,
		Fingerprint: Fingerprint(data),
		Data:        data,
	}, nil
}

// Dir is a directory tree of DRM files. A Dir opened on a single file
// contains just that file.
type Dir struct {
	root    string
	entries map[string]string // normalized name -> path on disk
}

// Open scans path for DRM files.
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}

	d := &Dir{root: path, entries: make(map[string]string)}
	if !info.IsDir() {
		d.root = filepath.Dir(path)
		d.entries[Key(filepath.Base(path))] = path
		return d, nil
	}

	err = filepath.WalkDir(path, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !isDRM(de.Name()) {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		name := Key(filepath.ToSlash(rel))
		// A raw file wins over a compressed copy of the same archive.
		if existing, ok := d.entries[name]; ok && !isCompressedName(existing) {
			return nil
		}
		d.entries[name] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return d, nil
}

// Root returns the directory the source was opened on.
func (d *Dir) Root() string {
	return d.root
}

// List returns all file names, sorted.
func (d *Dir) List() []string {
	result := make([]string, 0, len(d.entries))
	for name := range d.entries {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (d *Dir) Contains(name string) bool {
	_, ok := d.entries[Key(name)]
	return ok
}

// Read loads a file by name.
func (d *Dir) Read(name string) (*File, error) {
	path, ok := d.entries[Key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.Name = Key(name)
	return f, nil
}

// Key maps a file name to its lookup key: lower case, forward
// slashes, ending in .drm with no compression suffix.
func Key(name string) string {
	name = encoding.NormalizePath(name)
	for _, ext := range compressedExts {
		name = strings.TrimSuffix(name, ext)
	}
	if !strings.HasSuffix(name, ".drm") {
		name += ".drm"
	}
	return name
}

func isDRM(name string) bool {
	name = strings.ToLower(name)
	for _, ext := range compressedExts {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.HasSuffix(name, ".drm")
}

func isCompressedName(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range compressedExts {
		if ext == c {
			return true
		}
	}
	return false
}
