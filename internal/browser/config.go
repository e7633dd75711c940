package browser

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/devices"

	"github.com/roelfdiedericks/goclaw-browser/internal/paths"
)

// BrowserConfig holds browser configuration
type BrowserConfig struct {
	Dir                    string `json:"dir" yaml:"dir" toml:"dir"`                                                    // Browser data directory (empty = ~/.goclaw/browser)
	BinPath                string `json:"binPath" yaml:"binPath" toml:"binPath"`                                        // Explicit executable, checked after GOCLAW_BROWSER_PATH
	AutoDownload           bool   `json:"autoDownload" yaml:"autoDownload" toml:"autoDownload"`                         // Download Chromium if nothing is installed
	Headless               bool   `json:"headless" yaml:"headless" toml:"headless"`                                     // Run in headless mode
	Profile                string `json:"profile" yaml:"profile" toml:"profile"`                                        // Persistent profile name
	WindowWidth            int    `json:"windowWidth" yaml:"windowWidth" toml:"windowWidth"`                            // Fixed window size
	WindowHeight           int    `json:"windowHeight" yaml:"windowHeight" toml:"windowHeight"`                         //
	Device                 string `json:"device" yaml:"device" toml:"device"`                                           // Device emulation: "clear", "laptop", "iphone-x", etc.
	Timeout                string `json:"timeout" yaml:"timeout" toml:"timeout"`                                        // Per-action timeout (e.g., "30s"); wait uses its own
	HistorySettle          string `json:"historySettle" yaml:"historySettle" toml:"historySettle"`                      // Pause after back/forward
	FocusSettle            string `json:"focusSettle" yaml:"focusSettle" toml:"focusSettle"`                            // Pause between click and text insertion
	ExtendedStealth        bool   `json:"extendedStealth" yaml:"extendedStealth" toml:"extendedStealth"`                // Also inject go-rod/stealth evasions
	BlockPrivateNetworks   bool   `json:"blockPrivateNetworks" yaml:"blockPrivateNetworks" toml:"blockPrivateNetworks"` // Reject loopback/private/metadata URLs
	ScreenshotMaxDimension int    `json:"screenshotMaxDimension" yaml:"screenshotMaxDimension" toml:"screenshotMaxDimension"`
}

// DefaultBrowserConfig returns the default browser configuration
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Dir:                    "", // Will resolve to ~/.goclaw/browser
		AutoDownload:           false,
		Headless:               true,
		Profile:                "default",
		WindowWidth:            1920,
		WindowHeight:           1080,
		Device:                 "clear",
		Timeout:                "30s",
		HistorySettle:          "500ms",
		FocusSettle:            "50ms",
		ExtendedStealth:        false,
		BlockPrivateNetworks:   false,
		ScreenshotMaxDimension: 2000,
	}
}

// ResolveDir returns the browser directory, defaulting to ~/.goclaw/browser
func (c *BrowserConfig) ResolveDir() (string, error) {
	if c.Dir != "" {
		return paths.ExpandTilde(c.Dir)
	}
	return paths.BrowserDir()
}

// ResolveBinDir returns the directory auto-downloaded builds are stored in
func (c *BrowserConfig) ResolveBinDir() (string, error) {
	dir, err := c.ResolveDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bin"), nil
}

// ResolveProfilesDir returns the profiles directory
func (c *BrowserConfig) ResolveProfilesDir() (string, error) {
	dir, err := c.ResolveDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles"), nil
}

// ResolveProfile returns the configured profile name or "default"
func (c *BrowserConfig) ResolveProfile() string {
	if c.Profile == "" {
		return "default"
	}
	return c.Profile
}

// ResolveWindow returns the window size, falling back to 1920x1080.
// A desktop-sized window keeps sites from serving their mobile layout.
func (c *BrowserConfig) ResolveWindow() (int, int) {
	w, h := c.WindowWidth, c.WindowHeight
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return w, h
}

// ResolveTimeout returns the per-action timeout as a Duration
func (c *BrowserConfig) ResolveTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// ResolveHistorySettle returns the fixed delay after back/forward
func (c *BrowserConfig) ResolveHistorySettle() time.Duration {
	return parseDuration(c.HistorySettle, 500*time.Millisecond)
}

// ResolveFocusSettle returns the delay between focusing click and typing
func (c *BrowserConfig) ResolveFocusSettle() time.Duration {
	return parseDuration(c.FocusSettle, 50*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// ResolveDevice returns the devices.Device for the configured device name.
// Supported friendly names:
//   - "clear" - No emulation, browser fills window (default)
//   - "laptop" or "laptop-mdpi" - LaptopWithMDPIScreen (1280x800)
//   - "laptop-hidpi" - LaptopWithHiDPIScreen (1440x900, 2x DPI)
//   - "iphone-x" - iPhoneX
//   - "ipad" - iPad
//   - "pixel-2" - Pixel2
//
// Unknown names fall back to "clear".
func (c *BrowserConfig) ResolveDevice() devices.Device {
	switch strings.ToLower(c.Device) {
	case "laptop", "laptop-mdpi":
		return devices.LaptopWithMDPIScreen
	case "laptop-hidpi":
		return devices.LaptopWithHiDPIScreen
	case "iphone-x":
		return devices.IPhoneX
	case "ipad":
		return devices.IPad
	case "pixel-2":
		return devices.Pixel2
	default:
		return devices.Clear
	}
}
