package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/docextract/constants"
)

func TestSaveQualifiesAndHashes(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	body := "Patient: Smith"
	sf, err := s.Save("task-1", 0, Upload{Name: "../../etc/Referto Finale.PDF", Content: strings.NewReader(body)}, 0)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(sf.Path) != dir {
		t.Fatalf("escaped store dir: %s", sf.Path)
	}
	if filepath.Base(sf.Path) != "task-1_0_Referto_Finale.PDF" {
		t.Fatalf("name = %s", filepath.Base(sf.Path))
	}
	sum := sha256.Sum256([]byte(body))
	if sf.HashHex != hex.EncodeToString(sum[:]) || sf.Size != int64(len(body)) {
		t.Fatalf("hash/size = %s/%d", sf.HashHex, sf.Size)
	}
	if sf.Format != constants.PDF {
		t.Fatalf("format = %s", sf.Format)
	}
}

func TestSaveSameNameDifferentTasks(t *testing.T) {
	s, _ := NewStore(t.TempDir(), nil)
	a, err := s.Save("a", 0, Upload{Name: "x.txt", Content: strings.NewReader("1")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save("b", 0, Upload{Name: "x.txt", Content: strings.NewReader("2")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == b.Path {
		t.Fatal("collision between tasks")
	}
}

func TestSaveEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, nil)
	_, err := s.Save("t", 0, Upload{Name: "big.txt", Content: strings.NewReader(strings.Repeat("x", 11))}, 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial upload left behind: %v", entries)
	}
	if _, err := s.Save("t", 1, Upload{Name: "ok.txt", Content: strings.NewReader(strings.Repeat("x", 10))}, 10); err != nil {
		t.Fatalf("limit is inclusive: %v", err)
	}
}

func TestPurgeAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(dir, nil)
	sf, _ := s.Save("t", 0, Upload{Name: "a.txt", Content: strings.NewReader("a")}, 0)
	_, _ = s.Save("t", 1, Upload{Name: "b.txt", Content: strings.NewReader("b")}, 0)

	s.Remove(sf.Path, sf.Path)
	if _, err := os.Stat(sf.Path); !os.IsNotExist(err) {
		t.Fatal("Remove failed")
	}
	n, err := s.Purge()
	if err != nil || n != 1 {
		t.Fatalf("Purge = %d, %v", n, err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatal("Purge removed the directory itself")
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":            "report.pdf",
		"C:\\Users\\me\\a b.png": "a_b.png",
		"../../secret":          "secret",
		".hidden":               "hidden",
		"":                      "upload",
		"ñandú.txt":             "_and_.txt",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectPaths(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("b.pdf")
	mustWrite("a.txt")
	mustWrite("sub/c.xyz")
	mustWrite(".git/config")
	mustWrite(".secret.txt")

	paths, stats, err := CollectPaths(root, true)
	if err != nil {
		t.Fatal(err)
	}
	var rel []string
	for _, p := range paths {
		r, _ := filepath.Rel(root, p)
		rel = append(rel, r)
	}
	if strings.Join(rel, ",") != "a.txt,b.pdf,"+filepath.Join("sub", "c.xyz") {
		t.Fatalf("paths = %v", rel)
	}
	if stats.Matched != 2 || stats.Unsupported != 1 || stats.Skipped != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, _, err := CollectPaths(" ", true); err == nil {
		t.Fatal("expected error for empty root")
	}
}
