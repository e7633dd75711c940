package browser

import (
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"
)

// LaunchFlag is one command-line switch passed to the browser.
type LaunchFlag struct {
	Name   flags.Flag
	Values []string
}

// StealthFlags suppress the most common automation signals. Order is fixed.
var StealthFlags = []LaunchFlag{
	{Name: "disable-blink-features", Values: []string{"AutomationControlled"}},
	{Name: "no-first-run"},
	{Name: "no-default-browser-check"},
	{Name: "disable-infobars"},
	{Name: "disable-background-networking"},
	{Name: "disable-sync"},
	{Name: "disable-component-update"},
	{Name: "disable-dev-shm-usage"},
	{Name: "password-store", Values: []string{"basic"}},
}

// removedDefaults are launcher defaults that give automation away.
var removedDefaults = []flags.Flag{
	"enable-automation",
}

// applyStealthFlags adds StealthFlags to l and strips revealing defaults.
func applyStealthFlags(l *launcher.Launcher) *launcher.Launcher {
	for _, f := range removedDefaults {
		l = l.Delete(f)
	}
	for _, f := range StealthFlags {
		l = l.Set(f.Name, f.Values...)
	}
	return l
}

// StealthScript runs before any page script on every new document. It
// hides navigator.webdriver, provides a desktop-like plugin list and
// language list, stubs chrome.runtime, and answers the notification
// permission query the way a normal profile does.
const StealthScript = `(() => {
  const define = (obj, prop, value) => {
    try {
      Object.defineProperty(obj, prop, { get: () => value, configurable: true });
    } catch (e) {}
  };

  define(Navigator.prototype, 'webdriver', undefined);

  const mimeTypes = [
    { type: 'application/pdf', suffixes: 'pdf', description: 'Portable Document Format' },
    { type: 'text/pdf', suffixes: 'pdf', description: 'Portable Document Format' },
  ];
  const pluginNames = [
    'PDF Viewer',
    'Chrome PDF Viewer',
    'Chromium PDF Viewer',
    'Microsoft Edge PDF Viewer',
    'WebKit built-in PDF',
  ];
  const plugins = pluginNames.map((name) => {
    const p = Object.create(Plugin.prototype);
    define(p, 'name', name);
    define(p, 'filename', 'internal-pdf-viewer');
    define(p, 'description', 'Portable Document Format');
    define(p, 'length', mimeTypes.length);
    mimeTypes.forEach((m, i) => {
      const mt = Object.create(MimeType.prototype);
      define(mt, 'type', m.type);
      define(mt, 'suffixes', m.suffixes);
      define(mt, 'description', m.description);
      define(mt, 'enabledPlugin', p);
      define(p, i, mt);
    });
    return p;
  });
  const pluginArray = Object.create(PluginArray.prototype);
  plugins.forEach((p, i) => define(pluginArray, i, p));
  define(pluginArray, 'length', plugins.length);
  pluginArray.item = (i) => plugins[i] || null;
  pluginArray.namedItem = (n) => plugins.find((p) => p.name === n) || null;
  pluginArray.refresh = () => {};
  define(Navigator.prototype, 'plugins', pluginArray);

  define(Navigator.prototype, 'languages', Object.freeze(['en-US', 'en']));

  if (!window.chrome) {
    define(window, 'chrome', {});
  }
  if (window.chrome && !window.chrome.runtime) {
    window.chrome.runtime = {
      connect: () => ({ onMessage: { addListener() {} }, postMessage() {}, disconnect() {} }),
      sendMessage: () => {},
      id: undefined,
    };
  }

  if (navigator.permissions && navigator.permissions.query) {
    const query = navigator.permissions.query.bind(navigator.permissions);
    navigator.permissions.query = (params) =>
      params && params.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission, onchange: null })
        : query(params);
  }
})();`

// stealthScripts returns the scripts to inject on every new document.
// The go-rod/stealth evasions are larger and opt-in.
func stealthScripts(extended bool) []string {
	if extended {
		return []string{StealthScript, stealth.JS}
	}
	return []string{StealthScript}
}
