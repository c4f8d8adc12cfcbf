package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

// DefaultMaxDimension is the longest side of a stored image.
const DefaultMaxDimension = 800

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// Normalize decodes an accepted image, downscales it so neither side exceeds maxDim,
// flattens transparency onto white and re-encodes it as JPEG.
func Normalize(data []byte, maxDim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = flatten(img, maxDim)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin returns dimensions no larger than maxDim on either side, preserving aspect ratio.
func fitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

func flatten(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
		return dst
	}

	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
