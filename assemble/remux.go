package assemble

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/songdl-cli/songdl/log"
)

// remuxReady reports whether an ffmpeg binary is on the path. Looked up per
// call so a mid-session install is picked up.
func remuxReady() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// remuxRequired decides whether the downloaded stream has to be repackaged:
// only when the caller wants a bare FLAC file, the native container is
// something else and the codec says the samples inside are FLAC already.
func remuxRequired(targetExt, nativeExt, codec string) bool {
	if targetExt != ".flac" || nativeExt == ".flac" {
		return false
	}
	return strings.Contains(strings.ToLower(codec), "flac")
}

// remuxToFlac repackages the container without re-encoding samples.
func remuxToFlac(ctx context.Context, srcPath, dstPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", srcPath,
		"-map", "0:a",
		"-c:a", "copy",
		dstPath,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Warnf("ffmpeg remux failed: %v", err)
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(out))
	}
	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
