package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quarryops/ticketscan/constants"
	"github.com/quarryops/ticketscan/internal/common"
)

// Subdir names inside a session directory. All three exist from creation on.
const (
	SubdirOriginals = "originals"
	SubdirExtracted = "extracted"
	SubdirConverted = "converted"
)

// Subdirs lists the session subfolders in manifest order.
var Subdirs = []string{SubdirOriginals, SubdirExtracted, SubdirConverted}

const sessionIDLayout = "20060102T150405"

// StoredFile is one manifest entry for a file inside a session subfolder.
type StoredFile struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	MIMEType  string    `json:"mimeType"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID         string         `json:"sessionId"`
	CreatedAt  time.Time      `json:"createdAt"`
	ModifiedAt time.Time      `json:"modifiedAt"`
	FileCounts map[string]int `json:"fileCounts"`
}

// Details is the full manifest of a session.
type Details struct {
	ID        string       `json:"sessionId"`
	Originals []StoredFile `json:"originals"`
	Extracted []StoredFile `json:"extracted"`
	Converted []StoredFile `json:"converted"`
}

// Store owns the on-disk session layout under a single upload root.
// The filesystem is the only durable state this service has.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore ensures the upload root exists and returns a store over it.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute upload root path (served under /uploads).
func (s *Store) Root() string { return s.root }

// Create allocates a new session directory with its three subfolders and
// returns the session id (UTC timestamp + 4 random bytes, hex).
func (s *Store) Create() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("session id entropy: %w", err)
	}
	id := time.Now().UTC().Format(sessionIDLayout) + "-" + hex.EncodeToString(suffix)

	for _, sub := range Subdirs {
		if err := os.MkdirAll(filepath.Join(s.root, id, sub), 0o755); err != nil {
			return "", fmt.Errorf("create session %s: %w", id, err)
		}
	}
	s.logger.Info("session.created", "session_id", id)
	return id, nil
}

// Exists reports whether a session directory is present.
func (s *Store) Exists(id string) bool {
	if !validSessionID(id) {
		return false
	}
	st, err := os.Stat(filepath.Join(s.root, id))
	return err == nil && st.IsDir()
}

// List enumerates sessions, most recently created first.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read upload root: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		counts := make(map[string]int, len(Subdirs))
		for _, sub := range Subdirs {
			files, err := os.ReadDir(filepath.Join(s.root, id, sub))
			if err != nil {
				continue
			}
			counts[sub] = len(files)
		}

		created := sessionCreatedAt(id)
		modified := created
		if info, err := e.Info(); err == nil {
			modified = info.ModTime().UTC()
			if created.IsZero() {
				created = modified
			}
		}
		summaries = append(summaries, Summary{
			ID:         id,
			CreatedAt:  created,
			ModifiedAt: modified,
			FileCounts: counts,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Get reads the full manifest of one session.
func (s *Store) Get(id string) (*Details, error) {
	if !s.Exists(id) {
		return nil, common.NotFoundError("session " + id)
	}

	d := &Details{ID: id}
	for _, sub := range Subdirs {
		files, err := s.listSubdir(id, sub)
		if err != nil {
			return nil, err
		}
		switch sub {
		case SubdirOriginals:
			d.Originals = files
		case SubdirExtracted:
			d.Extracted = files
		case SubdirConverted:
			d.Converted = files
		}
	}
	return d, nil
}

// Delete removes a session directory recursively. A missing session is
// NotFound, not a server error.
func (s *Store) Delete(id string) error {
	if !s.Exists(id) {
		return common.NotFoundError("session " + id)
	}
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.logger.Info("session.deleted", "session_id", id)
	return nil
}

// StoreFile sanitizes the name, dedups it within (session, subdir) by
// appending _N before the extension, writes the bytes, and returns the
// manifest entry. source tags files extracted from an archive.
func (s *Store) StoreFile(sessionID, subdir, name string, data []byte, source string) (StoredFile, error) {
	if !s.Exists(sessionID) {
		return StoredFile{}, common.NotFoundError("session " + sessionID)
	}
	if !validSubdir(subdir) {
		return StoredFile{}, common.InvalidInputError("unknown subdir " + subdir)
	}

	dir := filepath.Join(s.root, sessionID, subdir)
	safe := SanitizeFilename(name)
	base, ext := splitExt(safe)

	final := safe
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(dir, final)); os.IsNotExist(err) {
			break
		}
		final = fmt.Sprintf("%s_%d%s", base, n, ext)
	}

	if err := os.WriteFile(filepath.Join(dir, final), data, 0o644); err != nil {
		return StoredFile{}, fmt.Errorf("write %s/%s/%s: %w", sessionID, subdir, final, err)
	}

	return StoredFile{
		Name:      final,
		URL:       FileURL(sessionID, subdir, final),
		Size:      int64(len(data)),
		MIMEType:  constants.MIMETypeForName(final),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ReadFile resolves a logical /uploads URL to its bytes and MIME type.
func (s *Store) ReadFile(url string) ([]byte, string, error) {
	path, err := s.ResolveURL(url)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", common.NotFoundError("file " + url)
		}
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	return data, constants.MIMETypeForName(filepath.Base(path)), nil
}

// ResolveURL maps /uploads/{sessionId}/{subdir}/{name} onto an absolute path
// inside the store, rejecting traversal and unknown subdirs.
func (s *Store) ResolveURL(url string) (string, error) {
	id, subdir, name, err := SplitURL(url)
	if err != nil {
		return "", err
	}
	if !s.Exists(id) {
		return "", common.NotFoundError("session " + id)
	}
	path := filepath.Join(s.root, id, subdir, name)
	if _, err := os.Stat(path); err != nil {
		return "", common.NotFoundError("file " + url)
	}
	return path, nil
}

// SplitURL decomposes a logical upload URL into its session, subdir, and
// filename segments.
func SplitURL(url string) (sessionID, subdir, name string, err error) {
	trimmed := strings.TrimPrefix(url, "/uploads/")
	if trimmed == url {
		return "", "", "", common.InvalidInputError("not an upload url: " + url)
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return "", "", "", common.InvalidInputError("malformed upload url: " + url)
	}
	sessionID, subdir, name = parts[0], parts[1], parts[2]
	if !validSessionID(sessionID) || !validSubdir(subdir) || name != SanitizeFilename(name) {
		return "", "", "", common.InvalidInputError("malformed upload url: " + url)
	}
	return sessionID, subdir, name, nil
}

// FileURL builds the logical URL a stored file is served under.
func FileURL(sessionID, subdir, name string) string {
	return "/uploads/" + sessionID + "/" + subdir + "/" + name
}

func (s *Store) listSubdir(id, subdir string) ([]StoredFile, error) {
	dir := filepath.Join(s.root, id, subdir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", id, subdir, err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{
			Name:      e.Name(),
			URL:       FileURL(id, subdir, e.Name()),
			Size:      info.Size(),
			MIMEType:  constants.MIMETypeForName(e.Name()),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	return files, nil
}

func validSubdir(subdir string) bool {
	for _, s := range Subdirs {
		if s == subdir {
			return true
		}
	}
	return false
}

// validSessionID guards against path traversal through the id segment.
func validSessionID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\")
}

func sessionCreatedAt(id string) time.Time {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		if t, err := time.Parse(sessionIDLayout, id[:idx]); err == nil {
			return t
		}
	}
	return time.Time{}
}
