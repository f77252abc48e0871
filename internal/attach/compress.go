package attach

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Compression tuning. Images under both bounds pass through untouched.
const (
	maxDimension   = 1920
	recodeOverSize = 1 << 20 // 1 MiB
	jpegQuality    = 82
)

// compressed is the outcome of one compression pass.
type compressed struct {
	data   []byte
	mime   string
	width  int
	height int
}

// compressImage decodes, optionally downscales, and re-encodes an image.
// Small images are passed through with only their dimensions probed; GIFs
// are never re-encoded so animations survive.
func compressImage(data []byte, mime string) (compressed, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return compressed{}, err
	}

	needsResize := cfg.Width > maxDimension || cfg.Height > maxDimension
	needsRecode := int64(len(data)) > recodeOverSize
	if mime == "image/gif" || (!needsResize && !needsRecode) {
		return compressed{data: data, mime: mime, width: cfg.Width, height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return compressed{}, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if needsResize {
		w, h = fitWithin(w, h, maxDimension)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	switch mime {
	case "image/png":
		// PNGs above the size bound become JPEG; screenshots compress far
		// better and transparency is not worth the payload here.
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return compressed{}, err
		}
		mime = "image/jpeg"
	default:
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return compressed{}, err
		}
		mime = "image/jpeg"
	}

	return compressed{data: buf.Bytes(), mime: mime, width: w, height: h}, nil
}

// fitWithin scales (w, h) to fit inside a max×max box preserving aspect.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		return max, h * max / w
	}
	return w * max / h, max
}
