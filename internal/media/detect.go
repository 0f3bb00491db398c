package media

import (
	"os"
)

// DetectFormat sniffs the real image format of a file from its header,
// ignoring the extension. Returns "unknown" for unrecognized content.
func DetectFormat(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 16)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", nil

	case len(header) >= 4 && header[0] == 0x89 && header[1] == 'P' && header[2] == 'N' && header[3] == 'G':
		return "png", nil

	case len(header) >= 4 && header[0] == 'G' && header[1] == 'I' && header[2] == 'F' && header[3] == '8':
		return "gif", nil

	// RIFF....WEBP
	case len(header) >= 12 && header[0] == 'R' && header[1] == 'I' && header[2] == 'F' && header[3] == 'F' &&
		header[8] == 'W' && header[9] == 'E' && header[10] == 'B' && header[11] == 'P':
		return "webp", nil

	case len(header) >= 2 && header[0] == 'B' && header[1] == 'M':
		return "bmp", nil

	case len(header) >= 4 && ((header[0] == 0x49 && header[1] == 0x49 && header[2] == 0x2A && header[3] == 0x00) ||
		(header[0] == 0x4D && header[1] == 0x4D && header[2] == 0x00 && header[3] == 0x2A)):
		return "tiff", nil
	}

	return "unknown", nil
}
