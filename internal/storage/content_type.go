package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// =============================================================================
// Content Type Detection
// =============================================================================

// DetectContentType determines the MIME type of an object.
//
// Detection priority:
// 1. If providedType is non-empty, use it directly
// 2. Try to detect from the key extension using mime.TypeByExtension
// 3. Sniff the first 512 bytes of data (if available)
// 4. Fall back to "application/octet-stream"
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		// http.DetectContentType needs at most 512 bytes.
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// =============================================================================
// Content Type Validation
// =============================================================================

// AllowedImageTypes defines the MIME types accepted for task photos and
// edited images. Matches the set the AI provider can consume.
var AllowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true, // some clients send this instead of image/jpeg
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// IsAllowedImageType checks if a content type is an accepted image format.
func IsAllowedImageType(contentType string) bool {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))
	return AllowedImageTypes[baseType]
}

// IsImage returns true if the content type is any image format.
func IsImage(contentType string) bool {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))
	return strings.HasPrefix(baseType, "image/")
}

// =============================================================================
// File Extension Helpers
// =============================================================================

// ExtensionForContentType returns a common file extension for a MIME type.
// Used when deriving storage keys from data URL media types.
func ExtensionForContentType(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	baseType = strings.TrimSpace(strings.ToLower(baseType))

	extensions := map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	if ext, ok := extensions[baseType]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}

	return ".bin"
}
