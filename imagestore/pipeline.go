package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// errRejected marks input that is not an acceptable image. It never leaves
// the package: callers see (false, nil).
var errRejected = errors.New("imagestore: rejected image")

// readBounded reads at most limit bytes. Larger input is rejected.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no content", errRejected)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: larger than %d bytes", errRejected, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", errRejected)
	}
	return data, nil
}

// decode checks the header before decoding so oversized images are rejected
// without allocating their pixels.
func decode(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRejected, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", errRejected)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", errRejected, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errRejected, err)
	}
	return img, nil
}

// fit returns the largest size with the aspect ratio of w×h that fits within
// maxW×maxH. Images already inside the bound keep their size.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(1, min(nw, maxW)), max(1, min(nh, maxH))
}

// normalize redraws img into a fresh NRGBA buffer, which drops every
// metadata block of the source, scales it into the bound and applies the
// blur pass.
func normalize(img image.Image, maxW, maxH int, sigma float64) image.Image {
	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxW, maxH)

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	if sigma > 0 {
		return imaging.Blur(dst, sigma)
	}
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// process runs the whole upload pipeline.
func process(data []byte, cfg Config) ([]byte, error) {
	img, err := decode(data, cfg.MaxPixels)
	if err != nil {
		return nil, err
	}
	return encodePNG(normalize(img, cfg.MaxWidth, cfg.MaxHeight, cfg.BlurSigma))
}
