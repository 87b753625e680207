// Package encoding provides text decoding utilities for DRM string fields.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Latin1ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// ASCII input is returned unchanged. Returns the original bytes as a string
// if conversion fails.
func Latin1ToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// CutNull returns data up to (not including) the first null byte.
func CutNull(data []byte) []byte {
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		return data[:idx]
	}
	return data
}

// FixedString decodes a fixed-size, null-padded field.
func FixedString(data []byte) string {
	return Latin1ToUTF8(CutNull(data))
}

// NormalizePath normalizes an archive path for case-insensitive lookup.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
