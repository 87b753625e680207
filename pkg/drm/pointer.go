package drm

import "fmt"

// Pointer addresses a byte inside a section: a section index and an offset
// relative to that section's payload.
type Pointer struct {
	Section int
	Offset  uint32
}

// Null is the pointer value of a field that carries no relocation.
var Null = Pointer{Section: -1}

// IsNull reports whether p is Null.
func (p Pointer) IsNull() bool {
	return p.Section < 0
}

// Add returns p advanced by delta bytes within the same section.
func (p Pointer) Add(delta uint32) Pointer {
	if p.IsNull() {
		return p
	}
	return Pointer{Section: p.Section, Offset: p.Offset + delta}
}

// String formats p as "section:offset".
func (p Pointer) String() string {
	if p.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d:0x%x", p.Section, p.Offset)
}

// Address returns the absolute buffer offset of p.
func (a *Archive) Address(p Pointer) (uint32, error) {
	s, err := a.Section(p.Section)
	if err != nil {
		return 0, err
	}
	if p.Offset > s.Size {
		return 0, fmt.Errorf("%w: pointer %s past end of section (0x%x bytes)", ErrOutOfBounds, p, s.Size)
	}
	return s.Offset + p.Offset, nil
}

// CursorAt returns a fresh cursor positioned at p.
func (a *Archive) CursorAt(p Pointer) (*Cursor, error) {
	addr, err := a.Address(p)
	if err != nil {
		return nil, err
	}
	c := NewCursor(a.data)
	c.Seek(int(addr))
	return c, nil
}

// PointerAt resolves the 4-byte field addressed by field. It returns Null
// when the owning section has no Pointer relocation at that exact site.
func (a *Archive) PointerAt(field Pointer) (Pointer, error) {
	c, err := a.CursorAt(field)
	if err != nil {
		return Null, err
	}
	return a.PointerHere(c, field.Section)
}

// PointerHere consumes the 4-byte field at the cursor, which must lie in the
// section owner, and resolves it through owner's relocation table. The
// cursor advances by 4 whether or not the field is a pointer.
func (a *Archive) PointerHere(c *Cursor, owner int) (Pointer, error) {
	s, err := a.Section(owner)
	if err != nil {
		return Null, err
	}
	pos := c.Tell()
	value, err := c.Uint32()
	if err != nil {
		return Null, err
	}
	if pos < int(s.Offset) || !s.Contains(uint32(pos)-s.Offset, 4) {
		return Null, fmt.Errorf("%w: pointer field at 0x%x outside section %d", ErrOutOfBounds, pos, owner)
	}

	r, ok := s.pointerAt(uint32(pos) - s.Offset)
	if !ok {
		return Null, nil
	}

	target := a.Sections[r.Target]
	if value < target.Offset || value-target.Offset > target.Size {
		return Null, fmt.Errorf("%w: pointer value 0x%x outside target section %d [0x%x:+0x%x]",
			ErrStructuralInvariant, value, r.Target, target.Offset, target.Size)
	}
	return Pointer{Section: r.Target, Offset: value - target.Offset}, nil
}
