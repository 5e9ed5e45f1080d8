// Package imagefit sizes evidence images for embedding in generated documents.
package imagefit

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultMaxWidth and DefaultMaxHeight bound images placed on a page.
	DefaultMaxWidth  = 580
	DefaultMaxHeight = 760

	fallbackWidth  = 400
	fallbackHeight = 300
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Size is a pixel width and height.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Fallback is returned when an image header cannot be read.
var Fallback = Size{Width: fallbackWidth, Height: fallbackHeight}

// NativeSize reads the pixel dimensions from a PNG or JPEG header.
// Unknown or truncated input yields Fallback.
func NativeSize(data []byte) Size {
	if size, ok := pngSize(data); ok {
		return size
	}
	if size, ok := jpegSize(data); ok {
		return size
	}
	return Fallback
}

func pngSize(data []byte) (Size, bool) {
	if len(data) < 24 || !bytes.Equal(data[:8], pngSignature) {
		return Size{}, false
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	if w == 0 || h == 0 || w > math.MaxInt32 || h > math.MaxInt32 {
		return Size{}, false
	}
	return Size{Width: int(w), Height: int(h)}, true
}

func jpegSize(data []byte) (Size, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return Size{}, false
	}
	i := 2
	for i+3 < len(data) {
		if data[i] != 0xFF {
			return Size{}, false
		}
		marker := data[i+1]
		// fill bytes
		if marker == 0xFF {
			i++
			continue
		}
		if marker == 0xC0 || marker == 0xC2 {
			if i+9 > len(data) {
				return Size{}, false
			}
			h := int(binary.BigEndian.Uint16(data[i+5 : i+7]))
			w := int(binary.BigEndian.Uint16(data[i+7 : i+9]))
			if w == 0 || h == 0 {
				return Size{}, false
			}
			return Size{Width: w, Height: h}, true
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if length < 2 {
			return Size{}, false
		}
		i += 2 + length
	}
	return Size{}, false
}

// Fitter scales images into a bounding box without enlarging them.
type Fitter struct {
	MaxWidth  int
	MaxHeight int
}

// NewFitter builds a Fitter, applying the page defaults to zero values.
func NewFitter(maxWidth, maxHeight int) Fitter {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return Fitter{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// Fit returns the display size for an image of the given native size.
func (f Fitter) Fit(native Size) Size {
	if native.Width <= 0 || native.Height <= 0 {
		native = Fallback
	}
	scale := math.Min(float64(f.MaxWidth)/float64(native.Width), float64(f.MaxHeight)/float64(native.Height))
	scale = math.Min(scale, 1)
	return Size{
		Width:  int(math.Round(float64(native.Width) * scale)),
		Height: int(math.Round(float64(native.Height) * scale)),
	}
}

// Fitted applies the default page box.
func Fitted(native Size) Size {
	return NewFitter(DefaultMaxWidth, DefaultMaxHeight).Fit(native)
}

// DecodeBase64 accepts either a data URL or bare base64 payload.
func DecodeBase64(raw string) ([]byte, error) {
	payload := raw
	if idx := strings.Index(raw, ","); idx >= 0 {
		payload = raw[idx+1:]
	}
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return data, nil
}

// Extension picks the media file extension from a data URL prefix or MIME type.
func Extension(tag string) string {
	lower := strings.ToLower(tag)
	switch {
	case strings.Contains(lower, "jpeg"), strings.Contains(lower, "jpg"):
		return "jpeg"
	case strings.Contains(lower, "webp"):
		return "webp"
	default:
		return "png"
	}
}
