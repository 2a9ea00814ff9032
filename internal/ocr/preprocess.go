package ocr

import (
	"fmt"
	"image"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"sort"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Mode selects the preprocessing pipeline applied before OCR.
type Mode string

const (
	// ModeFast downscales large images and binarizes with a global Otsu threshold.
	ModeFast Mode = "fast"
	// ModeFull applies adaptive gaussian thresholding followed by a median denoise.
	ModeFull Mode = "full"
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFast, ModeFull:
		return Mode(s), nil
	case "":
		return ModeFast, nil
	default:
		return "", fmt.Errorf("unknown preprocessing mode %q", s)
	}
}

// Preprocessor prepares raster images for OCR.
type Preprocessor struct {
	cfg Config
}

func NewPreprocessor(cfg Config) *Preprocessor {
	return &Preprocessor{cfg: cfg.withDefaults()}
}

// Prepare decodes the image at path, runs the configured pipeline and writes the
// result as a temporary PNG. The caller must invoke cleanup once OCR is done.
func (p *Preprocessor) Prepare(path string) (string, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	out := p.Apply(src)

	tmp, err := os.CreateTemp(p.cfg.TempDir, "ocr-pre-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("create temp image: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if err := png.Encode(tmp, out); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode preprocessed image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close preprocessed image: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// Apply runs the in-memory part of the pipeline.
func (p *Preprocessor) Apply(src image.Image) *image.Gray {
	g := toGray(src)
	switch p.cfg.Mode {
	case ModeFull:
		g = adaptiveThreshold(g, p.cfg.BlockSize, p.cfg.ThresholdC)
		return medianBlur(g, p.cfg.MedianKernel)
	default:
		g = downscale(g, p.cfg.MaxSide)
		return binarize(g, otsuThreshold(g))
	}
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(g, g.Bounds(), src, b.Min, stddraw.Src)
	return g
}

// downscale shrinks g so its longest side equals maxSide, keeping the aspect ratio.
// Images already within bounds are returned untouched.
func downscale(g *image.Gray, maxSide int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return g
	}
	scale := float64(maxSide) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	if w >= h {
		nw = maxSide
	} else {
		nh = maxSide
	}
	dst := image.NewGray(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), g, g.Bounds(), draw.Src, nil)
	return dst
}

// otsuThreshold picks the global threshold maximizing between-class variance.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]float64
	for _, v := range g.Pix {
		hist[v]++
	}
	total := float64(len(g.Pix))
	if total == 0 {
		return 127
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i) * c
	}

	var sumB, wB, best float64
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// binarize maps pixels strictly above t to white, the rest to black.
func binarize(g *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// gaussianKernel mirrors the default sigma used for a given odd size:
// sigma = 0.3*((k-1)*0.5 - 1) + 0.8.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// adaptiveThreshold marks a pixel white when it is brighter than the
// gaussian-weighted mean of its block minus c. Borders replicate edge pixels.
func adaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	kernel := gaussianKernel(block)
	half := block / 2

	// separable blur: rows then columns
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range kernel {
				acc += kv * float64(row[clamp(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for i, kv := range kernel {
				mean += kv * tmp[clamp(y+i-half, h)*w+x]
			}
			if float64(g.Pix[y*g.Stride+x]) > math.Round(mean)-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// medianBlur replaces each pixel with the median of its k×k neighbourhood.
func medianBlur(g *image.Gray, k int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	half := k / 2
	window := make([]int, 0, k*k)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -half; dy <= half; dy++ {
				yy := clamp(y+dy, h)
				for dx := -half; dx <= half; dx++ {
					window = append(window, int(g.Pix[yy*g.Stride+clamp(x+dx, w)]))
				}
			}
			sort.Ints(window)
			out.Pix[y*out.Stride+x] = uint8(window[len(window)/2])
		}
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
