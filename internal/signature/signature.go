// Package signature validates the attestation signature exported by the
// browser drawing surface as a base64 PNG data URL.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
)

var (
	ErrEmptySignature  = errors.New("signature is empty")
	ErrInvalidEncoding = errors.New("signature is not a base64 encoded PNG")
	ErrBlankSignature  = errors.New("signature contains no strokes")
)

const dataURLPrefix = "data:image/png;base64,"

// Present is the cheap check used by the attestation step gate.
func Present(dataURL string) bool {
	return strings.TrimSpace(dataURL) != ""
}

// Decode accepts a PNG data URL or bare base64 and returns the image.
func Decode(dataURL string) (image.Image, error) {
	s := strings.TrimSpace(dataURL)
	if s == "" {
		return nil, ErrEmptySignature
	}

	if strings.HasPrefix(s, "data:") {
		if !strings.HasPrefix(strings.ToLower(s), dataURLPrefix) {
			return nil, fmt.Errorf("%w: unsupported data url type", ErrInvalidEncoding)
		}
		s = s[len(dataURLPrefix):]
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some canvas exporters drop the padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return img, nil
}

// Validate decodes the signature and checks that something was drawn: at
// least one pixel that is neither fully transparent nor pure white.
func Validate(dataURL string) error {
	img, err := Decode(dataURL)
	if err != nil {
		return err
	}

	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("%w: zero sized image", ErrBlankSignature)
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inked(img, x, y) {
				return nil
			}
		}
	}
	return ErrBlankSignature
}

func inked(img image.Image, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()
	if a == 0 {
		return false
	}
	return !(r == 0xffff && g == 0xffff && b == 0xffff)
}
