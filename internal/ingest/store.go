package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// ErrTooLarge is returned when an upload's content exceeds the allowed bytes.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Store persists uploads in one directory. Names are qualified by task id and
// index so concurrent tasks never collide.
type Store struct {
	dir    string
	logger *slog.Logger
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the location for name inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, SafeName(name))
}

// Save writes u as <taskID>_<index>_<name>, hashing while copying. At most
// limit bytes are accepted; limit <= 0 means unbounded.
func (s *Store) Save(taskID string, index int, u Upload, limit int64) (StoredFile, error) {
	name := fmt.Sprintf("%s_%d_%s", taskID, index, SafeName(u.Name))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create upload: %w", err)
	}

	src := u.Content
	if limit > 0 {
		src = io.LimitReader(u.Content, limit+1)
	}
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		s.Remove(path)
		return StoredFile{}, fmt.Errorf("save %s: %w", u.Name, err)
	}

	return StoredFile{
		Path:       path,
		Name:       u.Name,
		Size:       n,
		HashHex:    hex.EncodeToString(h.Sum(nil)),
		Format:     constants.MapExtToFormat(filepath.Ext(u.Name)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Remove deletes paths, ignoring ones that are already gone.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove file", "path", p, "error", err)
		}
	}
}

// Purge empties the store directory, keeping the directory itself.
func (s *Store) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.dir, err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
