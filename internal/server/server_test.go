package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryops/ticketscan/internal/common"
	"github.com/quarryops/ticketscan/internal/export"
	"github.com/quarryops/ticketscan/internal/extract"
	"github.com/quarryops/ticketscan/internal/ingest"
	"github.com/quarryops/ticketscan/internal/orient"
	"github.com/quarryops/ticketscan/internal/pdf"
	"github.com/quarryops/ticketscan/internal/session"
)

// scriptedVision replays canned responses in call order.
type scriptedVision struct {
	replies    []string
	configured bool
	calls      int
}

func (f *scriptedVision) Configured() bool { return f.configured }

func (f *scriptedVision) CompleteVision(_ context.Context, _ string, _ []string) (string, error) {
	reply := ""
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return reply, nil
}

func newTestServer(t *testing.T, vision *scriptedVision) (*Server, *session.Store) {
	t.Helper()
	cfg := &common.Config{
		Server:  common.ServerConfig{HTTPAddr: ":0"},
		Storage: common.StorageConfig{UploadRoot: t.TempDir(), MaxUploadFiles: 5, MaxUploadBytes: 10 << 20},
	}
	store, err := session.NewStore(cfg.Storage.UploadRoot, nil)
	require.NoError(t, err)

	srv := New(
		cfg,
		store,
		ingest.NewService(store, nil),
		orient.NewService(store, vision, nil),
		extract.NewService(store, vision, nil),
		export.NewService(nil),
		pdf.NewSplitter(store, nil),
		vision,
		nil,
	)
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]string
	decodeBody(t, rec, &created)
	id := created["sessionId"]
	require.NotEmpty(t, id)

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		ID        string               `json:"sessionId"`
		Originals []session.StoredFile `json:"originals"`
		Extracted []session.StoredFile `json:"extracted"`
		Converted []session.StoredFile `json:"converted"`
	}
	decodeBody(t, rec, &details)
	assert.Equal(t, id, details.ID)
	assert.NotNil(t, details.Originals)
	assert.Empty(t, details.Originals)

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Sessions []session.Summary `json:"sessions"`
	}
	decodeBody(t, rec, &listing)
	require.Len(t, listing.Sessions, 1)
	assert.Equal(t, id, listing.Sessions[0].ID)

	rec = doJSON(t, srv, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]string
	decodeBody(t, rec, &created)
	return created["sessionId"]
}

func multipartUpload(t *testing.T, srv *Server, id string, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := multipartUpload(t, srv, id, map[string][]byte{
		"ticket.png": tinyPNG(t),
		"notes.txt":  []byte("dropped silently"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Files []session.StoredFile `json:"files"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "ticket.png", body.Files[0].Name)

	// Stored files are served back under their logical URL.
	req := httptest.NewRequest(http.MethodGet, body.Files[0].URL, nil)
	fileRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(fileRec, req)
	assert.Equal(t, http.StatusOK, fileRec.Code)
	assert.Equal(t, tinyPNG(t), fileRec.Body.Bytes())
}

func TestUploadOnlyUnsupported(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := multipartUpload(t, srv, id, map[string][]byte{"notes.txt": []byte("x")})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Files []session.StoredFile `json:"files"`
	}
	decodeBody(t, rec, &body)
	assert.NotNil(t, body.Files)
	assert.Empty(t, body.Files)
}

func TestUploadNoFiles(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := multipartUpload(t, srv, id, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooManyFiles(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	files := map[string][]byte{}
	for i := 0; i < 6; i++ {
		files[string(rune('a'+i))+".png"] = tinyPNG(t)
	}
	rec := multipartUpload(t, srv, id, files)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMissingSession(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	rec := multipartUpload(t, srv, "nope", map[string][]byte{"a.png": tinyPNG(t)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConverted(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/converted", map[string]any{
		"images": []map[string]string{
			{"name": "scan_page_1.png", "dataUrl": "data:image/png;base64,aGk="},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Files []session.StoredFile `json:"files"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "scan_page_1.png", body.Files[0].Name)
}

func TestConvertedRequiresImages(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/converted", map[string]any{"images": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVisionEndpointsUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{configured: false})
	id := createSession(t, srv)

	paths := []string{
		"/api/sessions/" + id + "/orient",
		"/api/sessions/" + id + "/orient-all",
		"/api/extract",
		"/api/extract-batch",
		"/api/analyze",
	}
	for _, p := range paths {
		rec := doJSON(t, srv, http.MethodPost, p, map[string]any{})
		assert.Equal(t, http.StatusInternalServerError, rec.Code, p)

		var body map[string]string
		decodeBody(t, rec, &body)
		assert.Contains(t, body["error"], "not configured", p)
	}
}

func TestOrient(t *testing.T) {
	vision := &scriptedVision{configured: true, replies: []string{"0"}}
	srv, store := newTestServer(t, vision)
	id := createSession(t, srv)

	sf, err := store.StoreFile(id, session.SubdirOriginals, "scan.png", tinyPNG(t), "")
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/orient", map[string]string{"imageUrl": sf.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	var body orient.Result
	decodeBody(t, rec, &body)
	assert.Equal(t, 0, body.Rotated)
	assert.Equal(t, sf.URL, body.URL)
}

func TestOrientAll(t *testing.T) {
	vision := &scriptedVision{configured: true, replies: []string{"90"}}
	srv, store := newTestServer(t, vision)
	id := createSession(t, srv)

	_, err := store.StoreFile(id, session.SubdirOriginals, "scan.png", tinyPNG(t), "")
	require.NoError(t, err)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/orient-all", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []orient.BatchItem `json:"results"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Results, 1)
	assert.Equal(t, 90, body.Results[0].Rotated)
	assert.NotEmpty(t, body.Results[0].NewURL)
}

func TestExtract(t *testing.T) {
	vision := &scriptedVision{configured: true, replies: []string{
		`{"ticketNumber": {"value": "T-7", "confidence": 92}}`,
	}}
	srv, _ := newTestServer(t, vision)

	rec := doJSON(t, srv, http.MethodPost, "/api/extract", map[string]string{
		"imageUrl": "data:image/png;base64,aGk=",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticket extract.Ticket `json:"ticket"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "T-7", body.Ticket.Fields["ticketNumber"].Value)
	assert.Equal(t, 92, body.Ticket.OverallConfidence)
}

func TestExtractRequiresImageURL(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{configured: true})
	rec := doJSON(t, srv, http.MethodPost, "/api/extract", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractBatch(t *testing.T) {
	vision := &scriptedVision{configured: true, replies: []string{
		`{"ticketNumber": {"value": "T-1", "confidence": 92}}`,
		"nothing legible",
	}}
	srv, _ := newTestServer(t, vision)

	rec := doJSON(t, srv, http.MethodPost, "/api/extract-batch", map[string]any{
		"imageUrls": []string{"data:image/png;base64,aGk=", "data:image/png;base64,Yg=="},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tickets []extract.Ticket     `json:"tickets"`
		Errors  []extract.BatchError `json:"errors"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Tickets, 1)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "data:image/png;base64,Yg==", body.Errors[0].ImageURL)
}

func TestExtractBatchRequiresURLs(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{configured: true})
	rec := doJSON(t, srv, http.MethodPost, "/api/extract-batch", map[string]any{"imageUrls": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze(t *testing.T) {
	vision := &scriptedVision{configured: true, replies: []string{"One clean ticket."}}
	srv, _ := newTestServer(t, vision)

	rec := doJSON(t, srv, http.MethodPost, "/api/analyze", map[string]any{
		"images": []string{"data:image/png;base64,aGk="},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "One clean ticket.", body["analysis"])
}

func TestExportXLSX(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})

	ticket := extract.Ticket{
		ID:       "t1",
		ImageURL: "/uploads/x/originals/a.png",
		Fields: map[string]extract.Field{
			"ticketNumber": {Value: "T-9", Confidence: 95},
		},
		OverallConfidence: 95,
		Status:            "pending",
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/export-xlsx", map[string]any{
		"tickets": []extract.Ticket{ticket},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	// XLSX is a ZIP container.
	assert.Equal(t, "PK", rec.Body.String()[:2])
}

func TestExportXLSXRequiresTickets(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	rec := doJSON(t, srv, http.MethodPost, "/api/export-xlsx", map[string]any{"tickets": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitPDFRequiresFileURL(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	id := createSession(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+id+"/split-pdf", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{configured: true})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedVision{})
	rec := doJSON(t, srv, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
