package formats

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
)

// TextureFormat is the D3D format code of a texture section.
type TextureFormat uint32

// Supported texture formats.
const (
	FormatDXT1     TextureFormat = 0x31545844
	FormatDXT5     TextureFormat = 0x35545844
	FormatA8R8G8B8 TextureFormat = 0x15
)

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case FormatDXT1:
		return "DXT1"
	case FormatDXT5:
		return "DXT5"
	case FormatA8R8G8B8:
		return "A8R8G8B8"
	}
	return fmt.Sprintf("TextureFormat(0x%x)", uint32(f))
}

// Compressed reports whether the format is block compressed.
func (f TextureFormat) Compressed() bool {
	return f == FormatDXT1 || f == FormatDXT5
}

const textureHeaderSize = 24

// Texture is the top mip level of a texture section. Data holds DXT blocks
// for compressed formats and RGBA8 pixels for A8R8G8B8.
type Texture struct {
	SectionID  uint32
	Format     TextureFormat
	BitmapSize uint32
	Width      uint16
	Height     uint16
	NumMipMaps uint8
	Flags      uint16
	Data       []byte
}

// ParseTexture decodes a texture section payload.
func ParseTexture(sectionID uint32, payload []byte) (*Texture, error) {
	if len(payload) < textureHeaderSize {
		return nil, fmt.Errorf("%w: texture header of %d bytes", drm.ErrOutOfBounds, len(payload))
	}

	tex := &Texture{
		SectionID:  sectionID,
		Format:     TextureFormat(binary.LittleEndian.Uint32(payload[4:])),
		BitmapSize: binary.LittleEndian.Uint32(payload[8:]),
		Width:      binary.LittleEndian.Uint16(payload[16:]),
		Height:     binary.LittleEndian.Uint16(payload[18:]),
		NumMipMaps: payload[21],
		Flags:      binary.LittleEndian.Uint16(payload[22:]),
	}

	bitmap := payload[textureHeaderSize:]
	if uint64(tex.BitmapSize) > uint64(len(bitmap)) {
		return nil, fmt.Errorf("%w: bitmap of %d bytes, section holds %d",
			drm.ErrOutOfBounds, tex.BitmapSize, len(bitmap))
	}
	bitmap = bitmap[:tex.BitmapSize]

	w, h := int(tex.Width), int(tex.Height)
	var size int
	switch tex.Format {
	case FormatDXT1:
		size = blockCount(w) * blockCount(h) * 8
	case FormatDXT5:
		size = blockCount(w) * blockCount(h) * 16
	case FormatA8R8G8B8:
		size = w * h * 4
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTextureFormat, tex.Format)
	}
	if size > len(bitmap) {
		return nil, fmt.Errorf("%w: %s %dx%d needs %d bytes, bitmap holds %d",
			drm.ErrOutOfBounds, tex.Format, w, h, size, len(bitmap))
	}

	if tex.Format == FormatA8R8G8B8 {
		tex.Data = argbToRGBA(bitmap[:size])
	} else {
		tex.Data = append([]byte(nil), bitmap[:size]...)
	}
	return tex, nil
}

// blockCount returns the number of 4x4 blocks covering n pixels.
func blockCount(n int) int {
	if n < 4 {
		return 1
	}
	return (n + 3) / 4
}

// argbToRGBA reorders 32-bit pixels from A,R,G,B byte order to R,G,B,A.
func argbToRGBA(src []byte) []byte {
	dst := make([]byte, len(src))
	for i := 0; i+3 < len(src); i += 4 {
		dst[i+0] = src[i+1]
		dst[i+1] = src[i+2]
		dst[i+2] = src[i+3]
		dst[i+3] = src[i+0]
	}
	return dst
}

// LoadTextures decodes every texture section of a, keyed by section id.
func LoadTextures(a *drm.Archive) (map[uint32]*Texture, error) {
	textures := make(map[uint32]*Texture)
	err := a.LoadTextures(func(s *drm.Section, payload []byte) error {
		tex, err := ParseTexture(s.ID, payload)
		if err != nil {
			return err
		}
		textures[s.ID] = tex
		return nil
	})
	if err != nil {
		return nil, err
	}
	return textures, nil
}
