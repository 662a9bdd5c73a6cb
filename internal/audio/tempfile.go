package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WithTempFile writes the blob to a private temporary file, calls fn with its
// path and removes the file afterwards, whatever fn returns.
func WithTempFile(blob Blob, fn func(path string) error) error {
	f, err := os.CreateTemp("", "voice-*"+blobExt(blob))
	if err != nil {
		return fmt.Errorf("failed to create temp audio file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(blob.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp audio file: %w", err)
	}

	return fn(path)
}

func blobExt(blob Blob) string {
	if ext := filepath.Ext(blob.Filename); ext != "" {
		return ext
	}
	switch {
	case strings.Contains(blob.MIMEType, "wav"):
		return ".wav"
	case strings.Contains(blob.MIMEType, "webm"):
		return ".webm"
	case strings.Contains(blob.MIMEType, "ogg"):
		return ".ogg"
	case strings.Contains(blob.MIMEType, "mpeg"):
		return ".mp3"
	}
	return ".bin"
}
