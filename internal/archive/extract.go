// Package archive expands uploaded ZIP buffers into in-memory entries.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/quarryops/ticketscan/constants"
)

// Entry is one extracted archive member with its resolved MIME type.
type Entry struct {
	Name     string
	Data     []byte
	MIMEType string
}

// Extract unpacks a ZIP buffer. Directory entries, dot-files, and macOS
// metadata (__MACOSX) are skipped. A malformed archive fails the whole
// extraction; there are no partial results. Order follows the archive.
func Extract(zipBytes []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var entries []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if strings.HasPrefix(name, ".") || strings.Contains(f.Name, "__MACOSX") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		closeErr := rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip entry %s: %w", f.Name, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close zip entry %s: %w", f.Name, closeErr)
		}

		entries = append(entries, Entry{
			Name:     name,
			Data:     data,
			MIMEType: constants.MIMETypeForName(name),
		})
	}
	return entries, nil
}
