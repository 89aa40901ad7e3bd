package imagepool

import (
	"image"
	"image/jpeg"
	"io"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
)

// Encoder writes an image in one format.
type Encoder interface {
	// Extension is the file extension without the dot.
	Extension() string
	Encode(w io.Writer, img image.Image) error
}

// DefaultEncoders returns the AVIF, WEBP and JPEG encoders, in order of
// preference.
func DefaultEncoders() []Encoder {
	return []Encoder{AVIF{Quality: 60, Speed: 8}, WEBP{Quality: 75}, JPEG{Quality: 75}}
}

// AVIF encodes with the pure Go libavif build.
type AVIF struct {
	Quality int
	Speed   int
}

func (AVIF) Extension() string { return "avif" }

func (e AVIF) Encode(w io.Writer, img image.Image) error {
	return avif.Encode(w, img, avif.Options{Quality: e.Quality, QualityAlpha: e.Quality, Speed: e.Speed})
}

// WEBP encodes lossy WebP.
type WEBP struct {
	Quality int
}

func (WEBP) Extension() string { return "webp" }

func (e WEBP) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, webp.Options{Quality: e.Quality})
}

// JPEG is the universally supported fallback.
type JPEG struct {
	Quality int
}

func (JPEG) Extension() string { return "jpg" }

func (e JPEG) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: e.Quality})
}

// Resize scales img down to width, keeping its aspect ratio. Images that
// are already narrow enough are returned unchanged.
func Resize(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || bounds.Dx() <= width {
		return img
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
