// Package drmtest builds synthetic DRM archives for unit tests.
package drmtest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Relocation kinds as stored in the archive.
const (
	KindPointer         uint16 = 0
	KindResourceID      uint16 = 1
	KindResourceID16    uint16 = 2
	KindResourcePointer uint16 = 3
)

// Section types used by the tests.
const (
	TypeGeneral uint8 = 0
	TypeTexture uint8 = 5
)

// Builder assembles a version 14 archive.
type Builder struct {
	Version  uint32
	sections []*Section
}

// Section is a section payload under construction.
type Section struct {
	Index  int
	Type   uint8
	ID     uint32
	Data   []byte
	Relocs []Reloc
}

// Reloc is a relocation record owned by a section.
type Reloc struct {
	Kind   uint16
	Target int
	Offset uint32
}

// New returns an empty builder for the supported archive version.
func New() *Builder {
	return &Builder{Version: 14}
}

// AddSection appends a new empty section.
func (b *Builder) AddSection(typ uint8, id uint32) *Section {
	s := &Section{Index: len(b.sections), Type: typ, ID: id}
	b.sections = append(b.sections, s)
	return s
}

// Alloc appends n zero bytes and returns their offset within the section.
func (s *Section) Alloc(n int) uint32 {
	off := uint32(len(s.Data))
	s.Data = append(s.Data, make([]byte, n)...)
	return off
}

func (s *Section) ensure(off uint32, n int) {
	if need := int(off) + n; need > len(s.Data) {
		s.Data = append(s.Data, make([]byte, need-len(s.Data))...)
	}
}

// PutU8 writes v at off.
func (s *Section) PutU8(off uint32, v uint8) {
	s.ensure(off, 1)
	s.Data[off] = v
}

// PutU16 writes v at off.
func (s *Section) PutU16(off uint32, v uint16) {
	s.ensure(off, 2)
	binary.LittleEndian.PutUint16(s.Data[off:], v)
}

// PutI16 writes v at off.
func (s *Section) PutI16(off uint32, v int16) {
	s.PutU16(off, uint16(v))
}

// PutU32 writes v at off.
func (s *Section) PutU32(off uint32, v uint32) {
	s.ensure(off, 4)
	binary.LittleEndian.PutUint32(s.Data[off:], v)
}

// PutI32 writes v at off.
func (s *Section) PutI32(off uint32, v int32) {
	s.PutU32(off, uint32(v))
}

// PutF32 writes v at off.
func (s *Section) PutF32(off uint32, v float32) {
	s.PutU32(off, math.Float32bits(v))
}

// PutVec3 writes three consecutive floats at off.
func (s *Section) PutVec3(off uint32, x, y, z float32) {
	s.PutF32(off, x)
	s.PutF32(off+4, y)
	s.PutF32(off+8, z)
}

// PutBytes copies p to off.
func (s *Section) PutBytes(off uint32, p []byte) {
	s.ensure(off, len(p))
	copy(s.Data[off:], p)
}

// Pointer stores a section-relative pointer at off and records a Pointer
// relocation targeting target at targetOffset.
func (s *Section) Pointer(off uint32, target *Section, targetOffset uint32) {
	s.PutU32(off, targetOffset)
	s.Relocs = append(s.Relocs, Reloc{Kind: KindPointer, Target: target.Index, Offset: off})
}

// Relocation records an arbitrary relocation without touching the payload.
func (s *Section) Relocation(kind uint16, target int, off uint32) {
	s.Relocs = append(s.Relocs, Reloc{Kind: kind, Target: target, Offset: off})
}

// Bytes serializes the archive.
func (b *Builder) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, b.Version)
	binary.Write(buf, binary.LittleEndian, uint32(len(b.sections)))

	for _, s := range b.sections {
		binary.Write(buf, binary.LittleEndian, uint32(len(s.Data)))
		buf.WriteByte(s.Type)
		// pad, versionID
		buf.WriteByte(0)
		binary.Write(buf, binary.LittleEndian, uint16(0))
		binary.Write(buf, binary.LittleEndian, uint32(len(s.Relocs))<<8)
		binary.Write(buf, binary.LittleEndian, s.ID)
		// specMask
		binary.Write(buf, binary.LittleEndian, uint32(0))
	}

	for _, s := range b.sections {
		for _, r := range s.Relocs {
			binary.Write(buf, binary.LittleEndian, uint16(r.Target)<<3|r.Kind&7)
			binary.Write(buf, binary.LittleEndian, uint16(0))
			binary.Write(buf, binary.LittleEndian, r.Offset)
		}
		buf.Write(s.Data)
	}

	return buf.Bytes()
}

// PayloadOffsets returns the absolute offset each section payload will have
// in the serialized archive.
func (b *Builder) PayloadOffsets() []uint32 {
	offsets := make([]uint32, len(b.sections))
	pos := uint32(8 + 20*len(b.sections))
	for i, s := range b.sections {
		pos += uint32(8 * len(s.Relocs))
		offsets[i] = pos
		pos += uint32(len(s.Data))
	}
	return offsets
}
