package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"asset-tiles/internal/logging"
)

// Scan lists dir (non-recursively) and pairs each archive file with a
// sibling preview image sharing the same stem. Archives without a preview
// get a Handle with an empty PreviewPath. The result is sorted by archive
// name for deterministic gallery ordering.
func Scan(dir string) ([]Handle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	// stem -> extension -> full path, for preview candidates
	previews := make(map[string]map[string]string)
	var archives []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		switch {
		case ArchiveExtensions[ext]:
			archives = append(archives, name)
		case PreviewExtensions[ext]:
			if previews[stem] == nil {
				previews[stem] = make(map[string]string)
			}
			previews[stem][ext] = filepath.Join(dir, name)
		}
	}

	sort.Strings(archives)

	handles := make([]Handle, 0, len(archives))
	for _, name := range archives {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		preview := pickPreview(previews[stem])
		if preview == "" {
			logging.Debug("No preview for archive %s", name)
		}
		handles = append(handles, NewHandle(filepath.Join(dir, name), preview))
	}

	logging.Debug("Scanned %s: %d archives, %d preview stems", dir, len(archives), len(previews))
	return handles, nil
}

// pickPreview chooses among preview candidates for one stem following
// previewPreference order.
func pickPreview(candidates map[string]string) string {
	if len(candidates) == 0 {
		return ""
	}
	for _, ext := range previewPreference {
		if path, ok := candidates[ext]; ok {
			return path
		}
	}
	// A supported extension not in the preference list; take the
	// lexicographically first for determinism.
	exts := make([]string, 0, len(candidates))
	for ext := range candidates {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return candidates[exts[0]]
}
