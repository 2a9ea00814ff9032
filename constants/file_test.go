package constants

import "testing"

func TestMapExtToFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{".pdf", PDF},
		{"PDF", PDF},
		{".Png", IMAGE},
		{"jpg", IMAGE},
		{".JPEG", IMAGE},
		{".tiff", IMAGE},
		{".txt", TEXT},
		{".DOCX", WORD},
		{".xlsx", SPREADSHEET},
		{".xyz", UNSUPPORTED},
		{".doc", UNSUPPORTED},
		{"", UNSUPPORTED},
		{".", UNSUPPORTED},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := MapExtToFormat(tt.ext); got != tt.want {
				t.Errorf("MapExtToFormat(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSupportedExtensionsAreClassified(t *testing.T) {
	known := map[Format]bool{}
	for _, f := range Formats {
		known[f] = true
	}
	for _, ext := range SupportedExtensions() {
		got := MapExtToFormat("." + ext)
		if got == UNSUPPORTED || !known[got] {
			t.Errorf("extension %q classified as %q", ext, got)
		}
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	terminal := map[TaskStatus]bool{
		TaskStatusPending:    false,
		TaskStatusProcessing: false,
		TaskStatusCompleted:  true,
		TaskStatusError:      true,
		TaskStatusTimeout:    true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
