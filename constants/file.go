package constants

import "strings"

// MIMEByExtension maps lowercase file extensions (sans '.') to MIME types.
// Anything outside this table is treated as an opaque binary.
var MIMEByExtension = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
	"avif": "image/avif",
	"pdf":  "application/pdf",
}

const (
	MIMEOctetStream = "application/octet-stream"
	MIMEPDF         = "application/pdf"
	MIMEZip         = "application/zip"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMETypeForName resolves a filename to a MIME type purely by extension.
func MIMETypeForName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return MIMEOctetStream
	}
	if mt, ok := MIMEByExtension[NormalizeExt(name[idx:])]; ok {
		return mt
	}
	return MIMEOctetStream
}

// IsImageMIME reports whether a MIME type denotes an image.
func IsImageMIME(mt string) bool {
	return strings.HasPrefix(mt, "image/")
}

// IsSupportedUpload reports whether a standalone uploaded file is kept
// (images and PDFs); everything else is silently dropped by ingestion.
func IsSupportedUpload(mt string) bool {
	return IsImageMIME(mt) || mt == MIMEPDF
}

// IsZipUpload classifies an upload as a ZIP archive by filename or by the
// content type the client declared.
func IsZipUpload(name, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "zip")
}
