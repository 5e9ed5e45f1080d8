package imagefit

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

// DetectMIME sniffs the content type of image bytes.
func DetectMIME(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return http.DetectContentType(data)
}

func decode(data []byte) (image.Image, string, error) {
	ct := DetectMIME(data)
	var (
		img image.Image
		err error
	)
	switch {
	case strings.Contains(ct, "jpeg"):
		img, err = jpeg.Decode(bytes.NewReader(data))
	case strings.Contains(ct, "png"):
		img, err = png.Decode(bytes.NewReader(data))
	case strings.Contains(ct, "webp"):
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		return nil, ct, fmt.Errorf("unsupported image type %q", ct)
	}
	if err != nil {
		return nil, ct, fmt.Errorf("decode %s: %w", ct, err)
	}
	return img, ct, nil
}

// Downscale shrinks images larger than the box and re-encodes them.
// PNG input stays PNG, everything else becomes JPEG. WebP is always
// converted to JPEG since Word cannot render it. Failures return the
// original bytes and MIME type untouched.
func Downscale(data []byte, maxW, maxH int) ([]byte, string) {
	mime := DetectMIME(data)
	isWebP := strings.Contains(mime, "webp")
	if (maxW <= 0 || maxH <= 0) && !isWebP {
		return data, mime
	}
	img, ct, err := decode(data)
	if err != nil {
		return data, mime
	}
	b := img.Bounds()
	out, resized := img, false
	if maxW > 0 && maxH > 0 {
		target := NewFitter(maxW, maxH).Fit(Size{Width: b.Dx(), Height: b.Dy()})
		if target.Width < b.Dx() || target.Height < b.Dy() {
			target.Width = maxInt(target.Width, 1)
			target.Height = maxInt(target.Height, 1)
			dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
			out, resized = dst, true
		}
	}
	if !resized && !isWebP {
		return data, mime
	}

	buf := &bytes.Buffer{}
	if strings.Contains(ct, "png") {
		if err := png.Encode(buf, out); err != nil {
			return data, mime
		}
		return buf.Bytes(), "image/png"
	}
	if err := jpeg.Encode(buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return data, mime
	}
	return buf.Bytes(), "image/jpeg"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
