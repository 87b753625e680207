package drm

import "fmt"

// On-disk record sizes.
const (
	headerSize           = 8
	sectionHeaderSize    = 20
	relocationRecordSize = 8
)

// SectionType identifies the payload kind of a section.
type SectionType uint8

// Section types.
const (
	SectionGeneral SectionType = iota
	SectionEmpty
	SectionAnimation
	SectionPushBufferWC
	SectionPushBuffer
	SectionTexture
	SectionWave
	SectionDTPData
	SectionScript
	SectionShaderLib
)

var sectionTypeNames = [...]string{
	"General", "Empty", "Animation", "PushBufferWC", "PushBuffer",
	"Texture", "Wave", "DTPData", "Script", "ShaderLib",
}

// String returns the type name.
func (t SectionType) String() string {
	if int(t) < len(sectionTypeNames) {
		return sectionTypeNames[t]
	}
	return fmt.Sprintf("SectionType(%d)", uint8(t))
}

// RelocationKind is the 3-bit kind field of a relocation record.
type RelocationKind uint8

// Relocation kinds. Only RelocPointer is rewritten by the relocation pass.
const (
	RelocPointer RelocationKind = iota
	RelocResourceID
	RelocResourceID16
	RelocResourcePointer
)

// String returns the kind name.
func (k RelocationKind) String() string {
	switch k {
	case RelocPointer:
		return "Pointer"
	case RelocResourceID:
		return "ResourceID"
	case RelocResourceID16:
		return "ResourceID16"
	case RelocResourcePointer:
		return "ResourcePointer"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Relocation marks a 4-byte field of its owning section as a reference into
// the Target section.
type Relocation struct {
	Kind   RelocationKind
	Target int    // target section index
	Offset uint32 // site, relative to the owning section's payload
}

// Section is one entry of the section table.
type Section struct {
	Index        int
	Size         uint32
	Type         SectionType
	VersionID    uint16
	ResourceType uint8
	HasDebugInfo bool
	ID           uint32
	SpecMask     uint32
	Relocations  []Relocation

	// Offset is the absolute position of the payload in the archive buffer.
	Offset uint32

	numRelocations uint32
	pointers       map[uint32]int // site -> index into Relocations, Pointer kind only
}

// End returns the absolute offset one past the payload.
func (s *Section) End() uint32 {
	return s.Offset + s.Size
}

// Contains reports whether n bytes starting at the section-relative offset
// off lie inside the payload.
func (s *Section) Contains(off uint32, n uint32) bool {
	return uint64(off)+uint64(n) <= uint64(s.Size)
}

// pointerAt returns the Pointer-kind relocation whose site is off.
func (s *Section) pointerAt(off uint32) (Relocation, bool) {
	i, ok := s.pointers[off]
	if !ok {
		return Relocation{}, false
	}
	return s.Relocations[i], true
}

func (s *Section) indexPointers() {
	s.pointers = make(map[uint32]int)
	for i, r := range s.Relocations {
		if r.Kind == RelocPointer {
			s.pointers[r.Offset] = i
		}
	}
}

// readSectionHeader decodes one 20-byte section header.
func readSectionHeader(c *Cursor, index int) (*Section, error) {
	size, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	typ, err := c.Uint8()
	if err != nil {
		return nil, err
	}
	c.Skip(1)
	versionID, err := c.Uint16()
	if err != nil {
		return nil, err
	}
	packed, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	id, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	specMask, err := c.Uint32()
	if err != nil {
		return nil, err
	}

	return &Section{
		Index:        index,
		Size:         size,
		Type:         SectionType(typ),
		VersionID:    versionID,
		ResourceType: uint8(packed>>1) & 0x7F,
		HasDebugInfo: packed&1 != 0,
		ID:           id,
		SpecMask:     specMask,

		numRelocations: packed >> 8,
	}, nil
}

// readRelocation decodes one 8-byte relocation record.
func readRelocation(c *Cursor) (Relocation, error) {
	packed, err := c.Uint16()
	if err != nil {
		return Relocation{}, err
	}
	c.Skip(2)
	offset, err := c.Uint32()
	if err != nil {
		return Relocation{}, err
	}
	return Relocation{
		Kind:   RelocationKind(packed & 7),
		Target: int(packed >> 3),
		Offset: offset,
	}, nil
}
