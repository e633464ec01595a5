package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.png":             []byte("png-bytes"),
		"nested/dir/c.jpg":  []byte("jpg-bytes"),
		".hidden":           []byte("skip"),
		"__MACOSX/._a.png":  []byte("skip"),
		"__MACOSX/meta.txt": []byte("skip"),
	})

	entries, err := Extract(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, []byte("png-bytes"), byName["a.png"].Data)
	assert.Equal(t, "image/png", byName["a.png"].MIMEType)
	assert.Equal(t, "image/jpeg", byName["c.jpg"].MIMEType)
}

func TestExtractSkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("emptydir/")
	require.NoError(t, err)
	f, err := w.Create("emptydir/x.pdf")
	require.NoError(t, err)
	_, err = f.Write([]byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := Extract(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.pdf", entries[0].Name)
	assert.Equal(t, "application/pdf", entries[0].MIMEType)
}

func TestExtractMalformed(t *testing.T) {
	_, err := Extract([]byte("this is not a zip"))
	assert.Error(t, err)
}
