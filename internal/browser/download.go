package browser

import (
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// downloadChromium fetches rod's pinned Chromium build into binDir and
// returns its executable. A build that is already there is reused.
func downloadChromium(binDir string) (string, error) {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return "", execErr("launch", "failed to create browser bin directory", err)
	}
	L_info("browser: downloading Chromium", "dir", binDir)

	b := launcher.NewBrowser()
	b.RootDir = binDir
	p, err := b.Get()
	if err != nil {
		return "", execErr("launch", "failed to download Chromium; "+installHint, err)
	}

	L_info("browser: ready", "path", p)
	return p, nil
}

// findDownloaded looks for a previous download under binDir. Builds live
// in one directory per revision.
func findDownloaded(binDir string) string {
	entries, err := os.ReadDir(binDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidates := []string{
			filepath.Join(binDir, entry.Name(), "chrome"),
			filepath.Join(binDir, entry.Name(), "chrome.exe"),
			filepath.Join(binDir, entry.Name(), "Chromium.app", "Contents", "MacOS", "Chromium"),
		}
		for _, c := range candidates {
			if isExecutableFile(c) {
				return c
			}
		}
	}
	return ""
}
