package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/session"
)

func newTestService(t *testing.T) (*Service, *session.Store, string) {
	t.Helper()
	store, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	id, err := store.Create()
	require.NoError(t, err)
	return NewService(store, nil), store, id
}

func TestUploadStoresSupportedFiles(t *testing.T) {
	svc, _, id := newTestService(t)

	stored, err := svc.Upload(id, []UploadFile{
		{Name: "ticket.jpg", ContentType: "image/jpeg", Data: []byte("jpg")},
		{Name: "scan.pdf", ContentType: "application/pdf", Data: []byte("pdf")},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "ticket.jpg", stored[0].Name)
	assert.Equal(t, session.FileURL(id, session.SubdirOriginals, "ticket.jpg"), stored[0].URL)
	assert.Equal(t, "application/pdf", stored[1].MIMEType)
}

func TestUploadDropsUnsupportedSilently(t *testing.T) {
	svc, _, id := newTestService(t)

	stored, err := svc.Upload(id, []UploadFile{
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
		{Name: "script.exe", ContentType: "application/octet-stream", Data: []byte{0x4d}},
	})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestUploadExpandsZip(t *testing.T) {
	svc, store, id := newTestService(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range map[string][]byte{
		"pages/p1.png": []byte("one"),
		"pages/p2.jpg": []byte("two"),
		"readme.txt":   []byte("skip me"),
	} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	stored, err := svc.Upload(id, []UploadFile{
		{Name: "batch.zip", ContentType: "application/zip", Data: buf.Bytes()},
	})
	require.NoError(t, err)
	// Raw archive plus the two image members; the txt member is dropped.
	require.Len(t, stored, 3)
	assert.Equal(t, "batch.zip", stored[0].Name)

	d, err := store.Get(id)
	require.NoError(t, err)
	require.Len(t, d.Originals, 1)
	require.Len(t, d.Extracted, 2)
	for _, f := range d.Extracted {
		assert.Equal(t, "batch.zip", f.Source)
	}
}

func TestUploadMalformedZipFails(t *testing.T) {
	svc, _, id := newTestService(t)

	_, err := svc.Upload(id, []UploadFile{
		{Name: "broken.zip", ContentType: "application/zip", Data: []byte("not a zip")},
	})
	assert.Error(t, err)
}

func TestUploadMissingSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Upload("nope", []UploadFile{{Name: "a.png", Data: []byte("x")}})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSaveConverted(t *testing.T) {
	svc, store, id := newTestService(t)

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	stored, err := svc.SaveConverted(id, []ConvertedImage{
		{Name: "scan_page_1.png", DataURL: "data:image/png;base64," + payload},
		{Name: "bad.png", DataURL: "http://example.com/not-a-data-url"},
		{Name: "", DataURL: "data:image/png;base64," + payload},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "scan_page_1.png", stored[0].Name)
	assert.Equal(t, "page.png", stored[1].Name)

	d, err := store.Get(id)
	require.NoError(t, err)
	assert.Len(t, d.Converted, 2)
}

func TestParseDataURL(t *testing.T) {
	data, mt, err := ParseDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	assert.Equal(t, "image/png", mt)

	bad := []string{
		"image/png;base64,aGk=",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:image/png;base64,!!!",
	}
	for _, in := range bad {
		_, _, err := ParseDataURL(in)
		assert.Error(t, err, in)
	}
}
