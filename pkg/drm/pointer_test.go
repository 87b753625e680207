package drm

import (
	"errors"
	"testing"

	"github.com/Faultbox/drmview/internal/drmtest"
)

func TestPointerHereAdvances(t *testing.T) {
	b := drmtest.New()
	s0 := b.AddSection(drmtest.TypeGeneral, 0)
	s1 := b.AddSection(drmtest.TypeGeneral, 1)
	s0.Alloc(12)
	s1.Alloc(8)
	s0.PutU32(0, 42)
	s0.Pointer(4, s1, 4)

	a, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	c, err := a.CursorAt(a.Entry())
	if err != nil {
		t.Fatalf("CursorAt failed: %v", err)
	}
	start := c.Tell()

	p, err := a.PointerHere(c, 0)
	if err != nil {
		t.Fatalf("PointerHere failed: %v", err)
	}
	if !p.IsNull() {
		t.Errorf("plain scalar resolved to %s, want null", p)
	}
	if c.Tell() != start+4 {
		t.Errorf("cursor at %d after plain field, want %d", c.Tell(), start+4)
	}

	p, err = a.PointerHere(c, 0)
	if err != nil {
		t.Fatalf("PointerHere failed: %v", err)
	}
	if p != (Pointer{Section: 1, Offset: 4}) {
		t.Errorf("pointer = %s, want 1:0x4", p)
	}
	if c.Tell() != start+8 {
		t.Errorf("cursor at %d after pointer field, want %d", c.Tell(), start+8)
	}

	// The field lies in section 0, so section 1's table has no say.
	c.Seek(start + 4)
	if p, err := a.PointerHere(c, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("wrong owner: got %s, %v; want ErrOutOfBounds", p, err)
	}
}

func TestPointerValueOutsideTarget(t *testing.T) {
	b := drmtest.New()
	s0 := b.AddSection(drmtest.TypeGeneral, 0)
	s1 := b.AddSection(drmtest.TypeGeneral, 1)
	s0.Alloc(4)
	s1.Alloc(8)
	s0.Pointer(0, s1, 100)

	a, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := a.PointerAt(a.Entry()); !errors.Is(err, ErrStructuralInvariant) {
		t.Errorf("expected ErrStructuralInvariant, got %v", err)
	}
}

func TestPointerAddress(t *testing.T) {
	b := drmtest.New()
	b.AddSection(drmtest.TypeGeneral, 0).Alloc(16)
	a, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	addr, err := a.Address(Pointer{Section: 0, Offset: 16})
	if err != nil {
		t.Fatalf("Address at end of section failed: %v", err)
	}
	if addr != a.EntryOffset()+16 {
		t.Errorf("Address = %d, want %d", addr, a.EntryOffset()+16)
	}

	if _, err := a.Address(Pointer{Section: 0, Offset: 17}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("past end: expected ErrOutOfBounds, got %v", err)
	}
	if _, err := a.Address(Null); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("null: expected ErrInvalidSection, got %v", err)
	}
	if _, err := a.Address(Pointer{Section: 3}); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("bad section: expected ErrInvalidSection, got %v", err)
	}
}

func TestPointerHelpers(t *testing.T) {
	if !Null.IsNull() {
		t.Error("Null.IsNull() = false")
	}
	if Null.Add(8) != Null {
		t.Error("Null.Add changed the pointer")
	}
	p := Pointer{Section: 2, Offset: 0x10}
	if got := p.Add(0x20); got != (Pointer{Section: 2, Offset: 0x30}) {
		t.Errorf("Add = %s", got)
	}
	if p.String() != "2:0x10" {
		t.Errorf("String = %q", p.String())
	}
	if Null.String() != "null" {
		t.Errorf("Null.String = %q", Null.String())
	}
}
