package ingest

import (
	"io"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// Upload is one incoming file: its client-side name, declared size and content.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// StoredFile is an upload persisted under a task-qualified name.
type StoredFile struct {
	Path       string
	Name       string
	Size       int64
	HashHex    string
	Format     constants.Format
	UploadedAt time.Time
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned     uint32
	Matched     uint32
	Unsupported uint32
	Skipped     uint32
	Failed      uint32
}
