package constants

import "strings"

// Format is the extraction strategy chosen for an uploaded file.
// The set is closed: every value below has exactly one extractor.
type Format string

const (
	PDF         Format = "PDF"
	IMAGE       Format = "IMAGE"
	TEXT        Format = "TEXT"
	WORD        Format = "WORD"
	SPREADSHEET Format = "SPREADSHEET"
	UNSUPPORTED Format = "UNSUPPORTED"
)

// Formats lists every strategy in a stable order.
var Formats = []Format{PDF, IMAGE, TEXT, WORD, SPREADSHEET, UNSUPPORTED}

// extToFormat holds the recognized extensions (lowercased, without '.').
var extToFormat = map[string]Format{
	"pdf":  PDF,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"tif":  IMAGE,
	"tiff": IMAGE,
	"bmp":  IMAGE,
	"txt":  TEXT,
	"docx": WORD,
	"xlsx": SPREADSHEET,
	"xlsm": SPREADSHEET,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat classifies a file by extension only. Unknown or empty
// extensions map to UNSUPPORTED; no content sniffing is done.
func MapExtToFormat(ext string) Format {
	if f, ok := extToFormat[NormalizeExt(ext)]; ok {
		return f
	}
	return UNSUPPORTED
}

// SupportedExtensions returns the recognized extensions, without dots.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extToFormat))
	for ext := range extToFormat {
		out = append(out, ext)
	}
	return out
}
