package constants

import "strings"

// FileKind is the coarse content type an upload is routed by.
type FileKind string

const (
	FileKindImage       FileKind = "image"
	FileKindPDF         FileKind = "pdf"
	FileKindText        FileKind = "text"
	FileKindUnsupported FileKind = "unsupported"
)

// ImageExtensions maps accepted image extensions to their MIME type.
var ImageExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var PDFExtensions = map[string]struct{}{
	"pdf": {},
}

// TextExtensions holds plain-text receipt extensions. "text" is accepted for older uploads.
var TextExtensions = map[string]struct{}{
	"txt":  {},
	"text": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// KindForExt maps a (possibly dotted) extension to its FileKind.
func KindForExt(ext string) FileKind {
	ext = NormalizeExt(ext)
	if _, ok := ImageExtensions[ext]; ok {
		return FileKindImage
	}
	if _, ok := PDFExtensions[ext]; ok {
		return FileKindPDF
	}
	if _, ok := TextExtensions[ext]; ok {
		return FileKindText
	}
	return FileKindUnsupported
}

// ImageMIMEType returns the MIME type for an image extension, or "" when it is not an image.
func ImageMIMEType(ext string) string {
	return ImageExtensions[NormalizeExt(ext)]
}
