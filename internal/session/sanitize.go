package session

import (
	"path"
	"path/filepath"
	"strings"
)

const maxNameLength = 200

// SanitizeFilename turns an arbitrary uploaded filename into a safe path
// fragment: directory components are stripped, anything outside
// [A-Za-z0-9._-] becomes '_', and the result is capped at 200 characters.
func SanitizeFilename(name string) string {
	// ZIP entries use forward slashes regardless of platform.
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		name = ""
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	if out == "" {
		out = "file"
	}
	return out
}

// splitExt splits a filename into base and extension ("report.pdf" ->
// "report", ".pdf"). Dotless names get an empty extension.
func splitExt(name string) (base, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
