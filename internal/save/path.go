// Package save is the capture-saver side of the pipeline: tonemap,
// CPU readback, crop, PNG encode, disk write, and clipboard write. It
// runs on its own thread and owns disk and clipboard access.
package save

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ScreenshotsDirName is the output directory, created under the
// saver's base directory when absent.
const ScreenshotsDirName = "screenshots"

// sanitizePath ensures name is safe to join under baseDir: no
// absolute paths, no traversal, and the joined result must remain
// inside baseDir.
func sanitizePath(baseDir, name string) (string, bool) {
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return "", false
	}

	fullPath := filepath.Join(baseDir, name)

	rel, err := filepath.Rel(baseDir, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}

	return fullPath, true
}

// screenshotFilename formats the output name the way the screenshots
// directory expects: "Screenshot YYYY-MM-DD HHMMSS.png".
func screenshotFilename(t time.Time) string {
	return fmt.Sprintf("Screenshot %04d-%02d-%02d %02d%02d%02d.png",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}
