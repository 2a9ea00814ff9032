//go:build !gosseract

package ocr

import (
	"fmt"
	"log/slog"
)

func newGosseractEngine(Config, *slog.Logger) (Engine, error) {
	return nil, fmt.Errorf("%w: binary built without the gosseract tag", ErrUnavailable)
}
