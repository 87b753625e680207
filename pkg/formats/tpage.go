package formats

// TPage is a packed texture page id carrying the texture id and render flags.
type TPage uint32

// BlendMode is the blending a tpage requests.
type BlendMode int

// Blend modes.
const (
	BlendOpaque BlendMode = iota
	BlendAlpha
	BlendAdditive
	BlendMultiplicative
)

// String returns the mode name.
func (b BlendMode) String() string {
	switch b {
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	case BlendMultiplicative:
		return "multiplicative"
	}
	return "opaque"
}

const (
	tpageSingleSided = 0x200000
	tpageBlendMask   = 0x1E000
)

// TextureID returns the texture section id.
func (t TPage) TextureID() uint32 {
	return uint32(t) & 0x1FFF
}

// DoubleSided reports whether back faces are drawn.
func (t TPage) DoubleSided() bool {
	return t&tpageSingleSided == 0
}

// Blend returns the blend mode.
func (t TPage) Blend() BlendMode {
	switch t & tpageBlendMask {
	case 0x10000, 0x4000:
		return BlendAdditive
	case 0x8000:
		return BlendMultiplicative
	case 0x2000:
		return BlendAlpha
	}
	return BlendOpaque
}

// Transparent reports whether the material needs sorting with transparent
// geometry.
func (t TPage) Transparent() bool {
	return t.Blend() != BlendOpaque
}

// DepthWrite reports whether the material writes depth.
func (t TPage) DepthWrite() bool {
	return t&tpageBlendMask != 0x10000
}
