// Package drm reads DRM section archives: a header, a section table, one
// relocation table per section and the section payloads. Parsing resolves
// every Pointer relocation in place, after which the buffer is read-only and
// cross-section references are followed through Pointer values.
package drm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Archive versions.
const (
	Version          uint32 = 14
	VersionRelocated uint32 = 15 // written into the header once relocations are applied
)

// DRM errors.
var (
	ErrUnsupportedVersion    = errors.New("unsupported DRM version")
	ErrAlreadyRelocated      = errors.New("DRM buffer already relocated")
	ErrTruncatedHeader       = errors.New("truncated DRM header")
	ErrOutOfBounds           = errors.New("read out of bounds")
	ErrInvalidSection        = errors.New("invalid section")
	ErrStructuralInvariant   = errors.New("structural invariant violated")
	ErrUnsupportedRelocation = errors.New("unsupported relocation kind")
)

// Options controls archive parsing.
type Options struct {
	// Logger receives the section summary and relocation warnings.
	// Nil means no logging.
	Logger *zap.Logger

	// Strict rejects archives containing relocation kinds other than Pointer.
	Strict bool
}

// Archive is a parsed and relocated DRM buffer.
type Archive struct {
	Version  uint32 // as read, before the relocated marker was written
	Sections []*Section

	data        []byte
	unsupported map[RelocationKind]int
	log         *zap.Logger
}

// Parse parses and relocates data with default options.
func Parse(data []byte) (*Archive, error) {
	return ParseWithOptions(data, Options{})
}

// ParseWithOptions parses data and applies its Pointer relocations in place.
// The archive takes ownership of data; callers must not read or write it
// concurrently and must not hand it to a second Parse.
func ParseWithOptions(data []byte, opts Options) (*Archive, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedHeader, len(data))
	}

	c := NewCursor(data)
	version, _ := c.Uint32()
	switch version {
	case Version:
	case VersionRelocated:
		return nil, ErrAlreadyRelocated
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	numSections, _ := c.Uint32()
	if numSections == 0 {
		return nil, fmt.Errorf("%w: archive has no sections", ErrInvalidSection)
	}
	if uint64(numSections)*sectionHeaderSize > uint64(c.Remaining()) {
		return nil, fmt.Errorf("%w: %d section headers exceed %d bytes", ErrTruncatedHeader, numSections, len(data))
	}

	a := &Archive{
		Version:     version,
		Sections:    make([]*Section, numSections),
		data:        data,
		unsupported: make(map[RelocationKind]int),
		log:         log,
	}

	// Section headers
	for i := range a.Sections {
		s, err := readSectionHeader(c, i)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d header: %v", ErrTruncatedHeader, i, err)
		}
		a.Sections[i] = s
	}

	// Relocation tables and payload offsets
	for _, s := range a.Sections {
		if uint64(s.numRelocations)*relocationRecordSize > uint64(c.Remaining()) {
			return nil, fmt.Errorf("%w: section %d declares %d relocations", ErrTruncatedHeader, s.Index, s.numRelocations)
		}
		s.Relocations = make([]Relocation, s.numRelocations)
		for j := range s.Relocations {
			r, err := readRelocation(c)
			if err != nil {
				return nil, fmt.Errorf("%w: section %d relocation %d: %v", ErrTruncatedHeader, s.Index, j, err)
			}
			s.Relocations[j] = r
		}

		s.Offset = uint32(c.Tell())
		if uint64(s.Offset)+uint64(s.Size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: section %d payload [0x%x:+0x%x] exceeds %d bytes",
				ErrOutOfBounds, s.Index, s.Offset, s.Size, len(data))
		}
		c.Skip(int(s.Size))
		s.indexPointers()
	}

	if err := a.validateRelocations(opts.Strict); err != nil {
		return nil, err
	}

	applyRelocations(data, a.Sections)
	binary.LittleEndian.PutUint32(data[0:], VersionRelocated)

	log.Debug("DRM parsed",
		zap.Int("sections", len(a.Sections)),
		zap.Uint32("entry", a.EntryOffset()),
		zap.Int("size", len(data)))
	for _, s := range a.Sections {
		log.Debug("section",
			zap.Int("index", s.Index),
			zap.Stringer("type", s.Type),
			zap.Uint32("id", s.ID),
			zap.Uint32("offset", s.Offset),
			zap.Uint32("size", s.Size),
			zap.Int("relocations", len(s.Relocations)))
	}

	return a, nil
}

// validateRelocations checks every relocation before the buffer is touched,
// so a rejected archive is left unmodified.
func (a *Archive) validateRelocations(strict bool) error {
	for _, s := range a.Sections {
		sites := make(map[uint32]struct{}, len(s.pointers))
		for j, r := range s.Relocations {
			// Other kinds are never rewritten or followed, so their target
			// is not checked.
			if r.Kind != RelocPointer {
				if strict {
					return fmt.Errorf("%w: %s in section %d at 0x%x", ErrUnsupportedRelocation, r.Kind, s.Index, r.Offset)
				}
				a.unsupported[r.Kind]++
				continue
			}
			if r.Target >= len(a.Sections) {
				return fmt.Errorf("%w: section %d relocation %d targets section %d of %d",
					ErrInvalidSection, s.Index, j, r.Target, len(a.Sections))
			}
			if !s.Contains(r.Offset, 4) {
				return fmt.Errorf("%w: section %d relocation site 0x%x outside payload of 0x%x bytes",
					ErrOutOfBounds, s.Index, r.Offset, s.Size)
			}
			if _, dup := sites[r.Offset]; dup {
				return fmt.Errorf("%w: section %d has two pointer relocations at 0x%x",
					ErrStructuralInvariant, s.Index, r.Offset)
			}
			sites[r.Offset] = struct{}{}
		}
	}

	kinds := make([]RelocationKind, 0, len(a.unsupported))
	for k := range a.unsupported {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		a.log.Warn("relocation kind left unresolved",
			zap.Stringer("kind", k),
			zap.Int("count", a.unsupported[k]))
	}
	return nil
}

// applyRelocations rewrites each Pointer site from a target-relative offset
// to an absolute buffer offset. It must run exactly once per buffer.
func applyRelocations(data []byte, sections []*Section) {
	for _, s := range sections {
		for _, r := range s.Relocations {
			if r.Kind != RelocPointer {
				continue
			}
			site := s.Offset + r.Offset
			v := binary.LittleEndian.Uint32(data[site:])
			binary.LittleEndian.PutUint32(data[site:], v+sections[r.Target].Offset)
		}
	}
}

// Section returns the section at index.
func (a *Archive) Section(index int) (*Section, error) {
	if index < 0 || index >= len(a.Sections) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrInvalidSection, index, len(a.Sections))
	}
	return a.Sections[index], nil
}

// SectionByID returns the first section with the given id.
func (a *Archive) SectionByID(id uint32) (*Section, bool) {
	for _, s := range a.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// SectionsOfType returns the sections of type t in file order.
func (a *Archive) SectionsOfType(t SectionType) []*Section {
	var out []*Section
	for _, s := range a.Sections {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// EntryOffset returns the absolute offset of section 0, where top-level
// archive data begins.
func (a *Archive) EntryOffset() uint32 {
	return a.Sections[0].Offset
}

// Entry returns a pointer to the start of section 0.
func (a *Archive) Entry() Pointer {
	return Pointer{Section: 0}
}

// Payload returns a read-only view of a section's payload.
func (a *Archive) Payload(s *Section) []byte {
	return a.data[s.Offset:s.End():s.End()]
}

// Bytes returns the relocated buffer. It must not be modified.
func (a *Archive) Bytes() []byte {
	return a.data
}

// UnsupportedRelocations returns how many relocations of each non-Pointer
// kind were left unresolved.
func (a *Archive) UnsupportedRelocations() map[RelocationKind]int {
	out := make(map[RelocationKind]int, len(a.unsupported))
	for k, n := range a.unsupported {
		out[k] = n
	}
	return out
}

// LoadTextures hands every texture section payload to fn in file order,
// stopping at the first error.
func (a *Archive) LoadTextures(fn func(s *Section, payload []byte) error) error {
	for _, s := range a.SectionsOfType(SectionTexture) {
		if err := fn(s, a.Payload(s)); err != nil {
			return fmt.Errorf("texture section %d (id %d): %w", s.Index, s.ID, err)
		}
	}
	return nil
}
