package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"asset-tiles/internal/logging"

	// Image format decoders
	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height we'll process.
	// Larger source images are downscaled during load.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll
	// process. 20MP uses ~80MB in RGBA, which is already generous for a
	// preview that ends up as a 200px tile.
	MaxImagePixels = 20_000_000
)

// DecodeScaled loads the image at path and scales it to fit within
// width x height, preserving aspect ratio. When useVips is set and libvips
// is initialized, decode-time shrinking is used; otherwise the pure-Go path
// applies dimension constraints before a Lanczos fit.
func DecodeScaled(path string, width, height int, useVips bool) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("decode %s: invalid target size %dx%d", path, width, height)
	}

	if useVips && IsVipsAvailable() {
		img, err := LoadImageWithVips(path, width, height)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode failed for %s: %v, falling back to pure-Go path", path, err)
	}

	img, err := loadConstrained(path)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}

// loadConstrained opens an image, downscaling oversized sources first so a
// 100MP preview cannot blow the heap.
func loadConstrained(path string) (image.Image, error) {
	dims, err := Dimensions(path)
	if err != nil {
		logging.Debug("Could not read dimensions of %s: %v, loading directly", path, err)
		return openImage(path)
	}

	if dims.Width <= MaxImageDimension && dims.Height <= MaxImageDimension &&
		dims.Width*dims.Height <= MaxImagePixels {
		return openImage(path)
	}

	targetW, targetH := constrainDimensions(dims.Width, dims.Height)
	logging.Info("Constraining large image %s from %dx%d to %dx%d",
		path, dims.Width, dims.Height, targetW, targetH)

	img, err := openImage(path)
	if err != nil {
		return nil, err
	}
	return imaging.Resize(img, targetW, targetH, imaging.Lanczos), nil
}

func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying generic decode", path, err)

	// imaging dispatches on extension; a mislabeled file can still decode
	// through the registered format sniffers.
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open %s: %w", path, openErr)
	}
	defer file.Close()

	decoded, format, decErr := image.Decode(file)
	if decErr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	logging.Debug("Generic decode succeeded for %s (format %s)", path, format)
	return decoded, nil
}

func constrainDimensions(width, height int) (int, int) {
	targetW, targetH := width, height

	if width > MaxImageDimension || height > MaxImageDimension {
		if width > height {
			targetW = MaxImageDimension
			targetH = height * MaxImageDimension / width
		} else {
			targetH = MaxImageDimension
			targetW = width * MaxImageDimension / height
		}
	}

	if targetW*targetH > MaxImagePixels {
		scale := float64(MaxImagePixels) / float64(targetW*targetH)
		targetW = int(float64(targetW) * scale)
		targetH = int(float64(targetH) * scale)
	}

	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}
	return targetW, targetH
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Dimensions returns image dimensions without fully decoding the image.
func Dimensions(path string) (ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageDimensions{}, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return ImageDimensions{}, err
	}
	return ImageDimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// EncodeThumbnail serializes a bitmap for transport. WebP output requires
// libvips; without it the encoder silently falls back to JPEG (the webp
// package is decode-only), which callers should treat as equivalent.
// Returns the encoded bytes and their MIME type.
func EncodeThumbnail(img image.Image, format string, quality int) ([]byte, string, error) {
	var buf bytes.Buffer

	switch strings.ToLower(format) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil

	case "webp":
		if IsVipsAvailable() {
			data, err := exportWebpWithVips(img, quality)
			if err == nil {
				return data, "image/webp", nil
			}
			logging.Debug("vips webp export failed: %v, falling back to jpeg", err)
		}
		fallthrough

	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil

	default:
		return nil, "", fmt.Errorf("unsupported thumbnail format %q", format)
	}
}
