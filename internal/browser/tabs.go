package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// TabInfo describes one open tab.
type TabInfo struct {
	ID     string `json:"tab_id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Tabs lists open tabs in the order they were opened.
func (s *Session) Tabs(ctx context.Context) ([]TabInfo, error) {
	s.mu.RLock()
	order := append([]string(nil), s.order...)
	active := s.active
	pages := make(map[string]*rod.Page, len(s.tabs))
	for id, p := range s.tabs {
		pages[id] = p
	}
	s.mu.RUnlock()

	out := make([]TabInfo, 0, len(order))
	for _, id := range order {
		tab := TabInfo{ID: id, Active: id == active}
		if info, err := pages[id].Context(ctx).Info(); err == nil {
			tab.URL, tab.Title = info.URL, info.Title
		} else {
			L_debug("browser: tab info unavailable", "tab", id, "error", err)
		}
		out = append(out, tab)
	}
	return out, nil
}

// NewTab opens a tab, makes it active and optionally navigates it.
// References always belong to the active tab, so they are reset.
func (s *Session) NewTab(ctx context.Context, url string) (TabInfo, error) {
	url = strings.TrimSpace(url)
	if url != "" && s.cfg.BlockPrivateNetworks {
		if err := ValidateURLSafety(ctx, url); err != nil {
			return TabInfo{}, &Error{Kind: KindInvalidParams, Op: "new_tab", Msg: "navigation refused", Err: err}
		}
	}

	s.mu.RLock()
	prev := s.active
	s.mu.RUnlock()

	page, err := s.openTab(ctx)
	if err != nil {
		return TabInfo{}, err
	}
	tab := TabInfo{ID: string(page.TargetID), URL: "about:blank", Active: true}
	if url == "" {
		return tab, nil
	}

	info, err := s.Navigate(ctx, url)
	if err != nil {
		// leave no half-opened tab behind; the previous tab is active again
		s.mu.Lock()
		s.removeTabLocked(tab.ID, prev)
		s.mu.Unlock()
		if cerr := page.Close(); cerr != nil {
			L_warn("browser: failed to close tab", "tab", tab.ID, "error", cerr)
		}
		return TabInfo{}, err
	}
	tab.URL, tab.Title = info.URL, info.Title
	return tab, nil
}

// SwitchTab activates an open tab and resets references.
func (s *Session) SwitchTab(ctx context.Context, id string) (TabInfo, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	page, ok := s.tabs[id]
	if ok {
		s.active = id
	}
	s.mu.Unlock()
	if !ok {
		return TabInfo{}, invalidParams("switch_tab", "unknown tab %q; call tabs to list open tabs", id)
	}
	s.refs.Reset()

	p := page.Context(ctx)
	if _, err := p.Activate(); err != nil {
		return TabInfo{}, execErr("switch_tab", "failed to activate tab", err)
	}
	tab := TabInfo{ID: id, Active: true}
	if info, err := p.Info(); err == nil {
		tab.URL, tab.Title = info.URL, info.Title
	}
	return tab, nil
}

// CloseTab closes a tab (the active one when id is empty). The last tab
// cannot be closed; the session always has an active tab.
func (s *Session) CloseTab(ctx context.Context, id string) (TabInfo, error) {
	s.mu.Lock()
	if id = strings.TrimSpace(id); id == "" {
		id = s.active
	}
	page, ok := s.tabs[id]
	switch {
	case !ok:
		s.mu.Unlock()
		return TabInfo{}, invalidParams("close_tab", "unknown tab %q; call tabs to list open tabs", id)
	case len(s.tabs) == 1:
		s.mu.Unlock()
		return TabInfo{}, invalidParams("close_tab", "cannot close the last tab")
	}

	wasActive := s.removeTabLocked(id, "")
	next := s.active
	s.mu.Unlock()

	if wasActive {
		s.refs.Reset()
	}
	if err := page.Context(ctx).Close(); err != nil {
		L_warn("browser: failed to close tab", "tab", id, "error", err)
	}
	return TabInfo{ID: next, Active: true}, nil
}

// removeTabLocked forgets tab id. If it was active, restore becomes active
// when still open, otherwise the most recently opened tab. s.mu must be held.
func (s *Session) removeTabLocked(id, restore string) bool {
	delete(s.tabs, id)
	for i, t := range s.order {
		if t == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active != id {
		return false
	}
	switch _, ok := s.tabs[restore]; {
	case ok:
		s.active = restore
	case len(s.order) > 0:
		s.active = s.order[len(s.order)-1]
	default:
		s.active = ""
	}
	return true
}
