package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transcoder converts a captured audio file into a widely supported format.
type Transcoder interface {
	// Transcode writes the converted file and returns its path. The source
	// is removed only once the destination exists and is non-empty.
	Transcode(ctx context.Context, src string) (string, error)
}

// FFmpegTranscoder converts audio to mp3.
type FFmpegTranscoder struct {
	Binary string
}

// NewFFmpegTranscoder creates a transcoder.
func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{Binary: binary}
}

// Transcode implements Transcoder.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, src string) (string, error) {
	dst := ReplaceExt(src, ".mp3")
	if dst == src {
		return src, nil
	}

	cmd := exec.CommandContext(ctx, t.Binary,
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", src,
		"-vn", "-c:a", "libmp3lame", "-q:a", "4",
		dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("ffmpeg transcode: %w: %s", err, strings.TrimSpace(string(out)))
	}

	if err := finalize(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// finalize removes src once dst is confirmed on disk.
func finalize(src, dst string) error {
	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("transcoded file missing: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("transcoded file %s is empty", dst)
	}
	// A leftover source only costs disk space.
	_ = os.Remove(src)
	return nil
}

// ReplaceExt swaps the extension of path for ext.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
