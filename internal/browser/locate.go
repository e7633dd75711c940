package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// EnvBrowserPath forces a specific browser executable.
const EnvBrowserPath = "GOCLAW_BROWSER_PATH"

// installHint is appended to every "not found" error.
const installHint = "install Google Chrome or Chromium (e.g. `apt install chromium`), " +
	"set " + EnvBrowserPath + " to its executable, or enable browser.autoDownload"

// Locator finds (and optionally downloads) the browser executable.
// The result is cached; it is safe to call concurrently.
type Locator struct {
	binPath      string // configured executable
	binDir       string // where auto-downloaded builds live
	autoDownload bool

	mu     sync.Mutex
	cached string

	getenv      func(string) string
	lookPath    func(string) (string, error)
	systemPaths func() []string
}

// NewLocator creates a locator for cfg.
func NewLocator(cfg BrowserConfig) (*Locator, error) {
	binDir, err := cfg.ResolveBinDir()
	if err != nil {
		return nil, err
	}
	return &Locator{
		binPath:      cfg.BinPath,
		binDir:       binDir,
		autoDownload: cfg.AutoDownload,
		getenv:       os.Getenv,
		lookPath:     exec.LookPath,
		systemPaths:  systemCandidates,
	}, nil
}

// Source describes where an executable was found.
type Source string

const (
	SourceEnv      Source = "env"
	SourceConfig   Source = "config"
	SourceSystem   Source = "system"
	SourcePath     Source = "path"
	SourceDownload Source = "download"
)

// Find returns the executable path without downloading anything.
func (l *Locator) Find() (string, Source, error) {
	if p := l.getenv(EnvBrowserPath); p != "" {
		if !isExecutableFile(p) {
			return "", SourceEnv, execErr("launch", fmt.Sprintf("%s points at %q which is not an executable file", EnvBrowserPath, p), nil)
		}
		return p, SourceEnv, nil
	}

	if l.binPath != "" {
		if !isExecutableFile(l.binPath) {
			return "", SourceConfig, execErr("launch", fmt.Sprintf("configured binPath %q is not an executable file", l.binPath), nil)
		}
		return l.binPath, SourceConfig, nil
	}

	for _, p := range l.systemPaths() {
		if isExecutableFile(p) {
			return p, SourceSystem, nil
		}
	}

	for _, name := range pathNames {
		if p, err := l.lookPath(name); err == nil {
			return p, SourcePath, nil
		}
	}

	if p := findDownloaded(l.binDir); p != "" {
		return p, SourceDownload, nil
	}

	return "", "", execErr("launch", "no Chrome/Chromium executable found; "+installHint, nil)
}

// Ensure returns a usable executable, downloading Chromium into the bin
// directory when nothing is installed and auto-download is enabled.
func (l *Locator) Ensure() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != "" && isExecutableFile(l.cached) {
		return l.cached, nil
	}

	p, src, err := l.Find()
	if err == nil {
		L_debug("browser: found executable", "path", p, "source", src)
		l.cached = p
		return p, nil
	}
	if src != "" || !l.autoDownload {
		return "", err
	}

	p, err = downloadChromium(l.binDir)
	if err != nil {
		return "", err
	}
	l.cached = p
	return p, nil
}

// pathNames are looked up on $PATH after the platform list.
var pathNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
}

func systemCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		var out []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
			if base := os.Getenv(env); base != "" {
				out = append(out,
					filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
					filepath.Join(base, "Chromium", "Application", "chrome.exe"),
				)
			}
		}
		return out
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
