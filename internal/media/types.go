package media

import (
	"path/filepath"
	"strings"
)

// Handle identifies one archive+preview pair in the gallery. It is
// immutable once constructed; the tile engine only ever reads it.
type Handle struct {
	ArchivePath string
	PreviewPath string
	Dir         string
}

// NewHandle builds a Handle from an archive path and an optional preview
// path. The owning directory is derived from the archive.
func NewHandle(archivePath, previewPath string) Handle {
	return Handle{
		ArchivePath: archivePath,
		PreviewPath: previewPath,
		Dir:         filepath.Dir(archivePath),
	}
}

// BaseName returns the archive filename without its extension, which is the
// display name of the item.
func (h Handle) BaseName() string {
	base := filepath.Base(h.ArchivePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasPreview reports whether a preview image was paired with the archive.
func (h Handle) HasPreview() bool {
	return h.PreviewPath != ""
}

// IsZero reports whether the handle is empty.
func (h Handle) IsZero() bool {
	return h.ArchivePath == "" && h.PreviewPath == ""
}

// ArchiveExtensions maps file extensions to whether they are treated as
// asset archives.
var ArchiveExtensions = map[string]bool{
	".zip": true, ".sbsar": true, ".7z": true, ".rar": true,
	".tar": true, ".gz": true,
}

// PreviewExtensions maps file extensions to whether they are usable as
// preview images.
var PreviewExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// previewPreference orders preview extensions when several candidates share
// the same stem. Earlier wins.
var previewPreference = []string{".webp", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif"}
