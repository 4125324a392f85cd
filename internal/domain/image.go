package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Image handling constants.
const (
	// MaxImageBytes is the maximum decoded size accepted for a task or
	// edited image (20MB, matching the model API's inline-data limit).
	MaxImageBytes = 20 * 1024 * 1024

	// ThumbnailMaxWidth and ThumbnailMaxHeight bound list-view thumbnails.
	ThumbnailMaxWidth  = 320
	ThumbnailMaxHeight = 320

	// ThumbnailJPEGQuality is the JPEG quality used for generated thumbnails.
	ThumbnailJPEGQuality = 85
)

// allowedImageMediaTypes lists the media types accepted for inline images.
var allowedImageMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageData is a decoded inline image: raw bytes plus their media type.
type ImageData struct {
	MediaType string
	Bytes     []byte
}

// ParseImageDataURL decodes a data:<mediaType>;base64,<payload> string into
// its media type and raw bytes. Returns an EINVALID error for anything that
// is not a well-formed, supported, size-bounded image data URL.
func ParseImageDataURL(dataURL string) (ImageData, error) {
	const op = "image.parse"

	head, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return ImageData{}, Invalid(op, "image must be a base64 data URL")
	}

	mediaType, ok := strings.CutPrefix(head, "data:")
	if !ok || mediaType == "" {
		return ImageData{}, Invalid(op, "image data URL is missing a media type")
	}
	if !allowedImageMediaTypes[mediaType] {
		return ImageData{}, Errorf(EINVALID, op, "unsupported image media type %q", mediaType)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageData{}, Wrap(err, EINVALID, op, "image payload is not valid base64")
	}
	if len(raw) == 0 {
		return ImageData{}, Invalid(op, "image payload is empty")
	}
	if len(raw) > MaxImageBytes {
		return ImageData{}, Errorf(ETOOLARGE, op, "image size %d exceeds maximum %d", len(raw), MaxImageBytes)
	}

	return ImageData{MediaType: mediaType, Bytes: raw}, nil
}

// EncodeImageDataURL re-encodes raw image bytes as a data URL with the
// reported media type.
func EncodeImageDataURL(mediaType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}
