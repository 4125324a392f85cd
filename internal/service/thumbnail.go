// Package service contains the business logic layer.
//
// This file implements thumbnail generation for report listing cards.
package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/wgunawan/hiradc/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ThumbnailProcessor handles thumbnail generation from task photos.
type ThumbnailProcessor interface {
	// GenerateThumbnail creates a JPEG thumbnail from the provided image data.
	// The thumbnail fits within maxWidth x maxHeight, preserving aspect ratio.
	// Returns the thumbnail bytes plus the original width and height.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingProcessor implements ThumbnailProcessor using the imaging library.
type imagingProcessor struct{}

// NewImagingProcessor creates a thumbnail processor backed by the imaging
// library.
func NewImagingProcessor() ThumbnailProcessor {
	return &imagingProcessor{}
}

// GenerateThumbnail creates a thumbnail from the provided image data.
// Output is always JPEG.
func (p *imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	thumbnail := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(domain.ThumbnailJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), originalWidth, originalHeight, nil
}
