// Package export turns driver frames into persisted images.
package export

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/pthm-cable/spray/canvas"
	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/sim"
)

// TextureDir is the subdirectory frame images are written to.
const TextureDir = "textures"

// ImageExporter writes one image per frame to <Dir>/textures.
type ImageExporter struct {
	Dir           string
	Format        string  // png, bmp, tiff
	Channel       string  // gray, red, green, blue
	Scale         float64 // >= 1
	FeatherRadius float64 // pixels; 0 disables feathering

	written []string // relative texture paths, by frame index
}

// NewImageExporter builds an exporter from the export section and creates
// the texture directory.
func NewImageExporter(cfg *config.Config) (*ImageExporter, error) {
	e := &ImageExporter{
		Dir:     cfg.Export.Dir,
		Format:  cfg.Export.Format,
		Channel: cfg.Export.Channel,
		Scale:   cfg.Export.Scale,
	}
	if cfg.Export.Feather {
		e.FeatherRadius = cfg.Derived.SoftnessPixels
	}
	if err := os.MkdirAll(filepath.Join(e.Dir, TextureDir), 0755); err != nil {
		return nil, fmt.Errorf("creating texture directory: %w", err)
	}
	return e, nil
}

// TexturePath returns the path of frame i's image relative to Dir.
func (e *ImageExporter) TexturePath(i int) string {
	return filepath.ToSlash(filepath.Join(TextureDir, fmt.Sprintf("frame_%03d.%s", i, e.Format)))
}

// Written returns the relative paths of every image written so far.
func (e *ImageExporter) Written() []string {
	return e.written
}

// Export implements sim.Exporter.
func (e *ImageExporter) Export(f sim.Frame) error {
	img := e.Render(f.Snapshot)

	rel := e.TexturePath(f.Index)
	out, err := os.Create(filepath.Join(e.Dir, rel))
	if err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}
	if err := e.encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encoding %s: %w", rel, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", rel, err)
	}

	e.written = append(e.written, rel)
	return nil
}

// Render converts a snapshot to an image: feathering, channel mapping and
// resampling, in that order. Row 0 of the snapshot is the bottom of the
// wall, so rows are flipped to put it at the bottom of the image.
func (e *ImageExporter) Render(s canvas.Snapshot) image.Image {
	pix := s.Pix
	if e.FeatherRadius > 0 {
		pix = Feather(pix, s.Width, s.Height, e.FeatherRadius)
	}

	img := toImage(pix, s.Width, s.Height, e.Channel)
	if e.Scale <= 1 {
		return img
	}

	w := int(float64(s.Width) * e.Scale)
	h := int(float64(s.Height) * e.Scale)
	var dst draw.Image
	if e.Channel == "gray" {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toByte maps an intensity in [0,1] to 0..255, truncating.
func toByte(v float32) uint8 {
	return uint8(min(max(v, 0), 1) * 255)
}

func toImage(pix []float32, w, h int, channel string) image.Image {
	if channel == "gray" {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			src := pix[(h-1-y)*w : (h-y)*w]
			dst := img.Pix[y*img.Stride : y*img.Stride+w]
			for x, v := range src {
				dst[x] = toByte(v)
			}
		}
		return img
	}

	offset := 0
	switch channel {
	case "green":
		offset = 1
	case "blue":
		offset = 2
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := pix[(h-1-y)*w : (h-y)*w]
		row := img.Pix[y*img.Stride:]
		for x, v := range src {
			row[x*4+offset] = toByte(v)
			row[x*4+3] = 255
		}
	}
	return img
}

func (e *ImageExporter) encode(w io.Writer, img image.Image) error {
	switch e.Format {
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, img)
	}
}
