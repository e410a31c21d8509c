// Package filestore keeps uploaded blobs on disk under a single root
// directory. All access goes through an os.Root, so no operation can reach
// outside that directory whatever names callers pass in.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// URLPrefix is the public path under which stored blobs are served.
const URLPrefix = "/uploads/"

// NotesDir is the sub-area holding images embedded in notes documents.
const NotesDir = "notes"

var (
	// ErrNotFound is returned when a blob or directory does not exist, or
	// when a requested path is not a servable file inside the root.
	ErrNotFound = errors.New("blob not found")

	// ErrUnsupportedType is returned for extensions outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidName is returned when nothing usable remains of a file name
	// after sanitizing.
	ErrInvalidName = errors.New("invalid file name")

	// ErrInvalidPath is returned for sub-paths with empty, dot or
	// backslash components.
	ErrInvalidPath = errors.New("invalid storage path")
)

const (
	// maxNameBytes is the common file name limit of Linux, macOS and Windows
	// filesystems.
	maxNameBytes = 255

	// storedSuffixBytes is what Store appends to a base name in the worst
	// case: "_" + timestamp token + "_" + 8 characters of a uuid.
	storedSuffixBytes = 1 + len("20060102_150405_000") + 1 + 8
)

// Entry describes one stored blob.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a filesystem-backed blob area.
type Store struct {
	root    *os.Root
	dir     string
	allowed map[string]bool
	log     zerolog.Logger
	now     func() time.Time
}

// New creates dir if needed and opens it as the store root. allowedExts are
// matched case-insensitively, with or without a leading dot.
func New(dir string, allowedExts []string, log zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is empty")
	}
	if len(allowedExts) == 0 {
		return nil, fmt.Errorf("no allowed file extensions configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload directory %s: %w", dir, err)
	}

	allowed := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			allowed[ext] = true
		}
	}

	return &Store{
		root:    root,
		dir:     dir,
		allowed: allowed,
		log:     log.With().Str("component", "filestore").Logger(),
		now:     time.Now,
	}, nil
}

// Close releases the root handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// Dir returns the directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Allowed reports whether name carries an allowed extension.
func (s *Store) Allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	return ext != "" && s.allowed[ext]
}

// NotesDirName maps a folder date to the name of its notes directory. A
// label that sanitizes to nothing, such as one written only in non-Latin
// script, gets a stable name derived from the label instead.
func NotesDirName(date string) string {
	if name := SanitizeFilename(date); name != "" {
		return name
	}
	if date == "" {
		return ""
	}
	return "date-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(date)).String()[:8]
}

// NotesSubpath returns the sub-area for images embedded in the notes of date.
func NotesSubpath(date string) (string, error) {
	component := NotesDirName(date)
	if component == "" {
		return "", ErrInvalidPath
	}
	return NotesDir + "/" + component, nil
}

// Store writes r under subpath using a collision-resistant name derived from
// desiredName. It returns the stored name and its public URL. Nothing is
// written when the name or extension is rejected.
func (s *Store) Store(ctx context.Context, r io.Reader, desiredName, subpath string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	name := SafeName(desiredName)
	if name == "" {
		return "", "", ErrInvalidName
	}
	if !s.Allowed(name) {
		return "", "", ErrUnsupportedType
	}
	if err := validateSubpath(subpath); err != nil {
		return "", "", err
	}
	if err := s.mkdirAll(subpath); err != nil {
		return "", "", err
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	// Sanitized names are ASCII, so byte and rune lengths agree.
	maxBase := maxNameBytes - storedSuffixBytes - len(ext)
	if maxBase < 1 {
		return "", "", ErrInvalidName
	}
	if len(base) > maxBase {
		base = base[:maxBase]
	}
	stored := base + "_" + timestampToken(s.now()) + ext

	f, err := s.root.OpenFile(path.Join(subpath, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		// Same name within the same millisecond.
		stored = base + "_" + timestampToken(s.now()) + "_" + uuid.NewString()[:8] + ext
		f, err = s.root.OpenFile(path.Join(subpath, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to create blob %s: %w", stored, err)
	}

	rel := path.Join(subpath, stored)
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.removeQuietly(rel)
		return "", "", fmt.Errorf("failed to write blob %s: %w", stored, err)
	}
	if err := f.Close(); err != nil {
		s.removeQuietly(rel)
		return "", "", fmt.Errorf("failed to close blob %s: %w", stored, err)
	}

	s.log.Debug().Str("blob", rel).Msg("blob stored")
	return stored, URLPrefix + rel, nil
}

// Delete removes the blob name under subpath.
func (s *Store) Delete(subpath, name string) error {
	if err := validateSubpath(subpath); err != nil {
		return err
	}
	if name == "" || name != path.Base(name) || name == "." || name == ".." {
		return ErrInvalidPath
	}
	if err := s.root.Remove(path.Join(subpath, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Open opens the regular file at the slash-separated rel path. Directories,
// missing files and paths leaving the root all yield ErrNotFound.
func (s *Store) Open(rel string) (*os.File, fs.FileInfo, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || validateSubpath(rel) != nil {
		return nil, nil, ErrNotFound
	}

	f, err := s.root.Open(rel)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// List returns the regular files directly under subpath. A missing
// directory is an empty listing.
func (s *Store) List(subpath string) ([]Entry, error) {
	entries, err := s.readDir(subpath)
	if err != nil {
		return nil, err
	}
	files := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, Entry{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// ListDirs returns the names of directories directly under subpath.
func (s *Store) ListDirs(subpath string) ([]string, error) {
	entries, err := s.readDir(subpath)
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// RemoveDir deletes the files directly under subpath and then the directory
// itself. Nested directories are left alone, which keeps the directory.
func (s *Store) RemoveDir(subpath string) error {
	if subpath == "" {
		return ErrInvalidPath
	}
	files, err := s.List(subpath)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.root.Remove(path.Join(subpath, f.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f.Name, err)
		}
	}
	if err := s.root.Remove(subpath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove directory %s: %w", subpath, err)
	}
	return nil
}

func (s *Store) readDir(subpath string) ([]fs.DirEntry, error) {
	if err := validateSubpath(subpath); err != nil {
		return nil, err
	}
	dir := subpath
	if dir == "" {
		dir = "."
	}
	d, err := s.root.Open(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	return entries, nil
}

// mkdirAll creates each component of subpath that is missing.
func (s *Store) mkdirAll(subpath string) error {
	if subpath == "" {
		return nil
	}
	current := ""
	for _, component := range strings.Split(subpath, "/") {
		current = path.Join(current, component)
		if err := s.root.Mkdir(current, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create directory %s: %w", current, err)
		}
	}
	return nil
}

func (s *Store) removeQuietly(rel string) {
	if err := s.root.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Str("blob", rel).Msg("failed to remove partial blob")
	}
}

// validateSubpath accepts "" or slash-separated components that are neither
// empty nor dot entries and carry no backslash or NUL.
func validateSubpath(subpath string) error {
	if subpath == "" {
		return nil
	}
	if strings.HasPrefix(subpath, "/") {
		return ErrInvalidPath
	}
	for _, component := range strings.Split(subpath, "/") {
		if component == "" || component == "." || component == ".." ||
			strings.ContainsAny(component, "\\\x00") {
			return ErrInvalidPath
		}
	}
	return nil
}

// timestampToken renders t as YYYYMMDD_HHMMSS_mmm.
func timestampToken(t time.Time) string {
	return t.Format("20060102_150405") + fmt.Sprintf("_%03d", t.Nanosecond()/int(time.Millisecond))
}
