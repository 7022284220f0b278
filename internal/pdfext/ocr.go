package pdfext

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ocrPage renders one page with pdftoppm, preprocesses the image, and runs
// tesseract over it. A context deadline covers the whole toolchain; hitting
// it yields ErrOCRTimeout.
func (e *Engine) ocrPage(ctx context.Context, path string, page int) (string, error) {
	return e.ocrRegion(ctx, path, page, nil)
}

// ocrRegion is ocrPage restricted to a crop of the rendered page. A nil
// crop function OCRs the whole page.
func (e *Engine) ocrRegion(ctx context.Context, path string, page int, crop func(image.Rectangle) image.Rectangle) (string, error) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return "", fmt.Errorf("pdftoppm not installed: %w", err)
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", fmt.Errorf("tesseract not installed: %w", err)
	}

	if e.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.OCRTimeout)
		defer cancel()
	}

	tmpDir, err := os.MkdirTemp("", "cuentas-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	img, err := e.renderPage(ctx, path, page, tmpDir)
	if err != nil {
		return "", err
	}

	if crop != nil {
		img = cropImage(img, crop(img.Bounds()))
	}

	prepped := preprocess(img)
	preppedPath := filepath.Join(tmpDir, "prepped.png")
	if err := writePNG(preppedPath, prepped); err != nil {
		return "", err
	}

	outBase := filepath.Join(tmpDir, "ocr")
	cmd := exec.CommandContext(ctx, "tesseract", preppedPath, outBase, "-l", e.Languages, "--psm", "6")
	if out, runErr := cmd.CombinedOutput(); runErr != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: tesseract on page %d", ErrOCRTimeout, page)
		}
		return "", fmt.Errorf("tesseract: %v (%s)", runErr, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("reading tesseract output: %w", err)
	}
	return string(data), nil
}

// renderPage rasterizes a single PDF page to PNG and decodes it.
func (e *Engine) renderPage(ctx context.Context, path string, page int, tmpDir string) (image.Image, error) {
	zoom := e.Zoom
	if zoom <= 0 {
		zoom = 3.0
	}
	dpi := strconv.Itoa(int(zoom * 72))

	pageArg := strconv.Itoa(page)
	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", dpi, "-png", "-f", pageArg, "-l", pageArg, path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: pdftoppm on page %d", ErrOCRTimeout, page)
		}
		return nil, fmt.Errorf("pdftoppm: %v (%s)", err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("reading ocr temp dir: %w", err)
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		f, openErr := os.Open(filepath.Join(tmpDir, entry.Name()))
		if openErr != nil {
			return nil, openErr
		}
		img, decodeErr := png.Decode(f)
		f.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding rendered page: %w", decodeErr)
		}
		return img, nil
	}
	return nil, errors.New("pdftoppm produced no page image")
}

// preprocess binarizes and doubles the image: grayscale, Otsu threshold,
// then 2x nearest-neighbor upscale. Clean high-contrast input is what
// tesseract reads best.
func preprocess(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}

	threshold := otsuThreshold(gray)

	w := bounds.Dx() * 2
	h := bounds.Dy() * 2
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := gray.GrayAt(bounds.Min.X+x/2, bounds.Min.Y+y/2).Y
			if src > threshold {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// otsuThreshold picks the grayscale cut that minimizes intra-class variance.
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	total := 0
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	best, bestVar := 128, -1.0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return uint8(best)
}

func cropImage(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// pdfPageCount asks pdfinfo; zero means unknown.
func pdfPageCount(path string) int {
	out, err := exec.Command("pdfinfo", path).Output()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "Pages:") {
			if n, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))); convErr == nil {
				return n
			}
		}
	}
	return 0
}
