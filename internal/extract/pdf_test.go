package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/docextract/internal/ocr"
)

type fakeLayer struct {
	pages []string
	err   error
}

func (f fakeLayer) PageTexts(string) ([]string, error) { return f.pages, f.err }

// fakeRenderer writes a placeholder image so cleanup can be observed.
type fakeRenderer struct {
	rendered []string
	err      error
}

func (f *fakeRenderer) RenderPage(_ context.Context, _ string, page int, prefix string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	out := prefix + ".png"
	if err := os.WriteFile(out, []byte(fmt.Sprintf("page %d", page)), 0o644); err != nil {
		return "", err
	}
	f.rendered = append(f.rendered, out)
	return out, nil
}

type fakeOCR struct {
	availErr error
	text     string
	err      error
	calls    int
}

func (f *fakeOCR) Available() error { return f.availErr }
func (f *fakeOCR) ImageToText(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestPDFDigitalVersusOCRDecision(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		wantOCR  bool
		wantText string
	}{
		{"ten chars is digital", "0123456789", false, "0123456789"},
		{"long text is digital", "  Patient: Smith  ", false, "Patient: Smith"},
		{"nine chars is scanned", "012345678", true, "ocr text"},
		{"whitespace padded short text", "   abc \n\t ", true, "ocr text"},
		{"empty page", "", true, "ocr text"},
		{"multibyte counted by rune", "àèìòùàèìò", true, "ocr text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rd := &fakeRenderer{}
			o := &fakeOCR{text: "ocr text"}
			e := NewPDFExtractor(fakeLayer{pages: []string{tt.page}}, rd, o, nil)

			res, err := e.Extract(context.Background(), Request{Path: filepath.Join(dir, "a.pdf"), Name: "a.pdf"}, Deadline{}, nil)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if gotOCR := o.calls > 0; gotOCR != tt.wantOCR {
				t.Fatalf("ocr invoked = %v, want %v", gotOCR, tt.wantOCR)
			}
			if len(res.Pages) != 1 || res.Pages[0].Text != tt.wantText {
				t.Fatalf("pages = %+v", res.Pages)
			}
			wantProv := ProvenanceDigital
			if tt.wantOCR {
				wantProv = ProvenanceOCR
			}
			if res.Pages[0].Provenance != wantProv {
				t.Fatalf("provenance = %s, want %s", res.Pages[0].Provenance, wantProv)
			}
		})
	}
}

func TestPDFMixedPagesMarkersAndCleanup(t *testing.T) {
	dir := t.TempDir()
	rd := &fakeRenderer{}
	o := &fakeOCR{text: "scanned words"}
	layer := fakeLayer{pages: []string{"Patient: Smith, age 54", "", "Diagnosis: healthy"}}
	e := NewPDFExtractor(layer, rd, o, nil)

	var progress [][2]int
	req := Request{Path: filepath.Join(dir, "report.pdf"), Name: "report.pdf", ScratchPrefix: filepath.Join(dir, "task1_0")}
	res, err := e.Extract(context.Background(), req, Deadline{}, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := "--- Page 1 ---\nPatient: Smith, age 54\n\n" +
		"--- Page 2 (OCR) ---\nscanned words\n\n" +
		"--- Page 3 ---\nDiagnosis: healthy"
	if res.Text != want {
		t.Fatalf("text =\n%s\nwant\n%s", res.Text, want)
	}
	if len(rd.rendered) != 1 || !strings.HasPrefix(filepath.Base(rd.rendered[0]), "task1_0_page2") {
		t.Fatalf("rendered = %v", rd.rendered)
	}
	if _, err := os.Stat(rd.rendered[0]); !os.IsNotExist(err) {
		t.Fatal("rendered page not removed")
	}
	if fmt.Sprint(progress) != "[[1 3] [2 3] [3 3]]" {
		t.Fatalf("progress = %v", progress)
	}
}

func TestPDFRenderedPageRemovedWhenOCRFails(t *testing.T) {
	dir := t.TempDir()
	rd := &fakeRenderer{}
	o := &fakeOCR{err: errors.New("engine crashed")}
	e := NewPDFExtractor(fakeLayer{pages: []string{""}}, rd, o, nil)

	res, err := e.Extract(context.Background(), Request{Path: filepath.Join(dir, "s.pdf"), Name: "s.pdf"}, Deadline{}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "--- Page 1 (OCR) ---" {
		t.Fatalf("text = %q", res.Text)
	}
	if _, err := os.Stat(rd.rendered[0]); !os.IsNotExist(err) {
		t.Fatal("rendered page not removed after OCR failure")
	}
}

func TestPDFOCRUnavailable(t *testing.T) {
	rd := &fakeRenderer{}
	o := &fakeOCR{availErr: fmt.Errorf("%w: tesseract not found", ocr.ErrUnavailable)}
	e := NewPDFExtractor(fakeLayer{pages: []string{"", "Digital page text"}}, rd, o, nil)

	res, err := e.Extract(context.Background(), Request{Path: "x.pdf", Name: "x.pdf"}, Deadline{}, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "--- Page 1 (OCR) ---\n[OCR unavailable: ocr engine unavailable: tesseract not found]") {
		t.Fatalf("text = %q", res.Text)
	}
	if !strings.Contains(res.Text, "--- Page 2 ---\nDigital page text") {
		t.Fatalf("digital page lost: %q", res.Text)
	}
	if len(rd.rendered) != 0 || o.calls != 0 {
		t.Fatal("nothing should be rendered or recognized")
	}
}

func TestPDFDeadlineCheckedBeforeEachPage(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	dl := NewDeadline(now, 25*time.Second, clock)

	o := &fakeOCR{text: "x"}
	e := NewPDFExtractor(fakeLayer{pages: []string{"first page digital", "", ""}}, &fakeRenderer{}, o, nil)
	req := Request{Path: filepath.Join(t.TempDir(), "d.pdf"), Name: "d.pdf"}

	_, err := e.Extract(context.Background(), req, dl, func(done, _ int) {
		if done == 1 {
			now = now.Add(26 * time.Second)
		}
	})
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want ErrDeadlineExceeded", err)
	}
	if o.calls != 0 {
		t.Fatalf("ocr ran %d times after deadline", o.calls)
	}
}

func TestPDFTextLayerError(t *testing.T) {
	e := NewPDFExtractor(fakeLayer{err: errors.New("bad xref")}, nil, nil, nil)
	if _, err := e.Extract(context.Background(), Request{Path: "x.pdf"}, Deadline{}, nil); err == nil {
		t.Fatal("expected error")
	}
	e = NewPDFExtractor(fakeLayer{}, nil, nil, nil)
	if _, err := e.Extract(context.Background(), Request{Path: "x.pdf"}, Deadline{}, nil); err == nil {
		t.Fatal("expected error for zero pages")
	}
}

func TestDeadline(t *testing.T) {
	var zero Deadline
	if zero.Exceeded() || zero.Check() != nil {
		t.Fatal("zero deadline must never expire")
	}
	start := time.Unix(0, 0)
	now := start.Add(25 * time.Second)
	dl := NewDeadline(start, 25*time.Second, func() time.Time { return now })
	if dl.Exceeded() {
		t.Fatal("deadline reached exactly is not exceeded")
	}
	now = now.Add(time.Millisecond)
	if !errors.Is(dl.Check(), ErrDeadlineExceeded) {
		t.Fatal("expected ErrDeadlineExceeded")
	}
}

// buildPDF assembles a minimal PDF with one Helvetica text line per page.
// An empty string produces a page with no text layer.
func buildPDF(pageTexts ...string) []byte {
	var objs []string
	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageTexts)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, txt := range pageTexts {
		content := ""
		if txt != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", txt)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func TestLedongthucTextLayer(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "two.pdf")
	if err := os.WriteFile(p, buildPDF("Patient: Smith", "Glucose 98 mg/dL"), 0o644); err != nil {
		t.Fatal(err)
	}
	texts, err := LedongthucTextLayer{}.PageTexts(p)
	if err != nil {
		t.Fatalf("PageTexts: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("pages = %d, want 2", len(texts))
	}
	if !strings.Contains(texts[0], "Patient: Smith") || !strings.Contains(texts[1], "Glucose 98 mg/dL") {
		t.Fatalf("texts = %q", texts)
	}
}

func TestLedongthucTextLayerCorrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(p, []byte("%PDF-1.4\nnot really"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (LedongthucTextLayer{}).PageTexts(p); err == nil {
		t.Fatal("expected error")
	}
}
