package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// Session owns one browser process, its protocol connection, the open
// tabs and the reference table of the active tab.
//
// Close must be called to terminate the process. The launcher runs the
// browser under leakless, so it is also killed if this process dies.
type Session struct {
	ID  string
	cfg BrowserConfig

	launcher *launcher.Launcher
	browser  *rod.Browser
	drain    *drainer
	scripts  []string

	mu     sync.RWMutex
	tabs   map[string]*rod.Page
	order  []string
	active string

	refs *RefTable

	closeOnce sync.Once
	closeErr  error
}

// Launch locates the executable, starts the browser on the persistent
// profile, begins draining the connection and opens the first tab.
func Launch(ctx context.Context, cfg BrowserConfig) (*Session, error) {
	loc, err := NewLocator(cfg)
	if err != nil {
		return nil, execErr("launch", "failed to resolve browser directory", err)
	}
	bin, err := loc.Ensure()
	if err != nil {
		return nil, err
	}

	profilesDir, err := cfg.ResolveProfilesDir()
	if err != nil {
		return nil, execErr("launch", "failed to resolve profiles directory", err)
	}
	profileDir, err := NewProfiles(profilesDir).Ensure(cfg.ResolveProfile())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, execErr("launch", "cancelled before start", err)
	}

	w, h := cfg.ResolveWindow()
	l := launcher.New().
		Bin(bin).
		UserDataDir(profileDir).
		Headless(cfg.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", w, h)).
		Set("no-sandbox")
	l = applyStealthFlags(l)

	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		launcher: l,
		scripts:  stealthScripts(cfg.ExtendedStealth),
		tabs:     make(map[string]*rod.Page),
		refs:     NewRefTable(),
	}

	L_debug("browser: launching", "session", s.ID, "bin", bin, "profile", profileDir, "headless", cfg.Headless)
	start := time.Now()

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, execErr("launch", "failed to start browser process", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, execErr("launch", "failed to connect to browser", err)
	}
	s.browser = b.DefaultDevice(cfg.ResolveDevice())
	s.drain = startDrainer(s.browser.Event())

	if _, err := s.openTab(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	L_info("browser: session ready", "session", s.ID, "profile", cfg.ResolveProfile(), "took", time.Since(start).Round(time.Millisecond))
	return s, nil
}

// Close terminates the browser and stops the drainer. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				L_debug("browser: close returned error", "session", s.ID, "error", err)
				s.closeErr = err
			}
		}
		if s.drain != nil {
			s.drain.stop()
		}
		if s.launcher != nil {
			// Kill, not Cleanup: Cleanup would delete the persistent profile
			s.launcher.Kill()
		}
		s.refs.Reset()
		L_info("browser: session closed", "session", s.ID)
	})
	return s.closeErr
}

// Refs returns the reference table of the active tab.
func (s *Session) Refs() *RefTable { return s.refs }

// SessionID returns the identifier used in logs and the audit journal.
func (s *Session) SessionID() string { return s.ID }

// openTab creates a blank tab, installs the stealth scripts and makes it
// active. Script installation failure is a launch failure.
func (s *Session) openTab(ctx context.Context) (*rod.Page, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, execErr("new_tab", "failed to create tab", err)
	}
	for _, js := range s.scripts {
		if _, err := page.EvalOnNewDocument(js); err != nil {
			_ = page.Close()
			return nil, execErr("launch", "failed to install anti-fingerprint script", err)
		}
	}
	// detach from the caller's deadline; the tab outlives this call
	page = page.Context(context.Background())

	id := string(page.TargetID)
	s.mu.Lock()
	s.tabs[id] = page
	s.order = append(s.order, id)
	s.active = id
	s.mu.Unlock()

	s.refs.Reset()
	L_debug("browser: opened tab", "session", s.ID, "tab", id)
	return page, nil
}

// activePage returns the active tab bound to ctx.
func (s *Session) activePage(ctx context.Context, op string) (*rod.Page, error) {
	s.mu.RLock()
	page, ok := s.tabs[s.active]
	s.mu.RUnlock()
	if !ok {
		return nil, execErr(op, "no active tab", nil)
	}
	return page.Context(ctx), nil
}

// sleepCtx pauses for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
