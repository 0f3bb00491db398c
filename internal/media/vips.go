package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"asset-tiles/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library. Call once at startup, before
// any decode work. Optional: without it every decode takes the pure-Go path.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(vipsLogHandler, vipsLogThreshold())

	// Conservative memory settings; the engine's own cache holds the
	// decoded bitmaps, vips only needs scratch space.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources. vips cannot be restarted within
// the same process after shutdown.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// vipsLogThreshold maps our log level to the minimum vips level worth
// forwarding.
func vipsLogThreshold() vips.LogLevel {
	switch logging.GetLevel() {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	default:
		return vips.LogLevelError
	}
}

func vipsLogHandler(domain string, level vips.LogLevel, msg string) {
	switch level {
	case vips.LogLevelError, vips.LogLevelCritical:
		logging.Error("[%s] %s", domain, msg)
	case vips.LogLevelWarning:
		logging.Warn("[%s] %s", domain, msg)
	default:
		logging.Debug("[%s] %s", domain, msg)
	}
}

// LoadImageWithVips loads and resizes an image using libvips decode-time
// shrinking, which avoids materializing the full-size bitmap. Much more
// memory efficient than decode-then-resize for large sources.
func LoadImageWithVips(path string, targetWidth, targetHeight int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	logging.Debug("Loading %s with vips (target: %dx%d)", filepath.Base(path), targetWidth, targetHeight)

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(targetWidth, targetHeight, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	// Round-trip through JPEG bytes to produce a standard image.Image.
	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// exportWebpWithVips encodes a bitmap as WebP through libvips, using a
// lossless PNG intermediate to enter vips.
func exportWebpWithVips(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png intermediate: %w", err)
	}

	ref, err := vips.LoadImageFromBuffer(buf.Bytes(), vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	data, _, err := ref.ExportWebp(&vips.WebpExportParams{Quality: quality})
	if err != nil {
		return nil, fmt.Errorf("vips webp export: %w", err)
	}
	return data, nil
}
