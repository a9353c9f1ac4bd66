package thumbnails

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"printvault/internal/logging"
	"printvault/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when the source file cannot be decoded as an
// image.
var ErrNotImage = errors.New("source is not a decodable image")

// Rendition names the two sizes produced for every source image.
type Rendition string

const (
	// RenditionGrid is the small thumbnail shown in browse grids.
	RenditionGrid Rendition = "grid"
	// RenditionDetail is the larger preview shown on model detail pages.
	RenditionDetail Rendition = "detail"
)

// maxSize returns the bounding box edge for the rendition. Images are
// aspect-fit, never cropped or upscaled past their source dimensions.
func (r Rendition) maxSize() int {
	if r == RenditionDetail {
		return 1024
	}
	return 256
}

// Result describes one generated thumbnail file.
type Result struct {
	Rendition   Rendition
	StoragePath string
	Width       int
	Height      int
	// Format is the encoding actually written, webp or jpeg.
	Format string
}

// Generator writes thumbnail renditions under a root directory, keyed by
// model and file ID so regeneration overwrites in place.
type Generator struct {
	thumbDir string
}

func NewGenerator(thumbDir string) (*Generator, error) {
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	return &Generator{thumbDir: thumbDir}, nil
}

// Generate produces the grid and detail renditions for one source image.
// Either both renditions succeed or an error is returned; a partial pair is
// never left behind for the caller to record.
func (g *Generator) Generate(modelID, fileID, srcPath string) ([]Result, error) {
	results := make([]Result, 0, 2)
	for _, rendition := range []Rendition{RenditionGrid, RenditionDetail} {
		result, err := g.render(modelID, fileID, srcPath, rendition)
		if err != nil {
			metrics.ThumbnailFailuresTotal.Inc()
			for _, r := range results {
				os.Remove(r.StoragePath)
			}
			return nil, err
		}
		results = append(results, result)
	}
	metrics.ThumbnailsGeneratedTotal.Add(float64(len(results)))
	return results, nil
}

func (g *Generator) render(modelID, fileID, srcPath string, rendition Rendition) (Result, error) {
	outDir := filepath.Join(g.thumbDir, modelID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	if IsVipsAvailable() {
		data, width, height, err := renderWebpWithVips(srcPath, rendition.maxSize())
		if err == nil {
			outPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.webp", fileID, rendition))
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return Result{}, fmt.Errorf("failed to write thumbnail: %w", err)
			}
			return Result{
				Rendition:   rendition,
				StoragePath: outPath,
				Width:       width,
				Height:      height,
				Format:      "webp",
			}, nil
		}
		logging.Warn("Vips rendering failed for %s, falling back to JPEG: %v", filepath.Base(srcPath), err)
	}

	return g.renderJpegFallback(outDir, fileID, srcPath, rendition)
}

// renderJpegFallback decodes with pure-Go codecs and encodes JPEG. Used when
// libvips is unavailable or failed on a particular source.
func (g *Generator) renderJpegFallback(outDir, fileID, srcPath string, rendition Rendition) (Result, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrNotImage, filepath.Base(srcPath), err)
	}

	size := rendition.maxSize()
	thumb := img
	if img.Bounds().Dx() > size || img.Bounds().Dy() > size {
		thumb = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return Result{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.jpg", fileID, rendition))
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write thumbnail: %w", err)
	}

	return Result{
		Rendition:   rendition,
		StoragePath: outPath,
		Width:       thumb.Bounds().Dx(),
		Height:      thumb.Bounds().Dy(),
		Format:      "jpeg",
	}, nil
}
