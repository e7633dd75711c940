package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// PageInfo is the location of the active tab after an action.
type PageInfo struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Snapshot is the result of a page read.
type Snapshot struct {
	URL   string       `json:"url"`
	Title string       `json:"title"`
	Text  string       `json:"text"`
	Count int          `json:"count"`
	Refs  []ElementRef `json:"refs"`
}

// ScrollPosition is the window offset after a scroll.
type ScrollPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WaitResult reports whether a waited-for element appeared.
type WaitResult struct {
	Found   bool          `json:"found"`
	Elapsed time.Duration `json:"-"`
}

// Navigate loads url in the active tab and invalidates references.
func (s *Session) Navigate(ctx context.Context, url string) (PageInfo, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return PageInfo{}, invalidParams("navigate", "url is required")
	}
	if s.cfg.BlockPrivateNetworks {
		if err := ValidateURLSafety(ctx, url); err != nil {
			return PageInfo{}, &Error{Kind: KindInvalidParams, Op: "navigate", Msg: "navigation refused", Err: err}
		}
	}

	page, err := s.activePage(ctx, "navigate")
	if err != nil {
		return PageInfo{}, err
	}

	s.refs.Reset()
	if err := page.Navigate(url); err != nil {
		return PageInfo{}, externalErr("navigate", fmt.Sprintf("failed to load %s", url), err)
	}
	if err := page.WaitLoad(); err != nil {
		return PageInfo{}, externalErr("navigate", fmt.Sprintf("page %s did not finish loading", url), err)
	}

	info, err := page.Info()
	if err != nil {
		return PageInfo{}, execErr("navigate", "failed to read page info", err)
	}
	L_debug("browser: navigated", "session", s.ID, "url", info.URL, "title", info.Title)
	return PageInfo{URL: info.URL, Title: info.Title, Status: "loaded"}, nil
}

// Back goes one step back in the active tab's history.
func (s *Session) Back(ctx context.Context) (PageInfo, error) {
	return s.history(ctx, "back", `() => history.back()`)
}

// Forward goes one step forward in the active tab's history.
func (s *Session) Forward(ctx context.Context) (PageInfo, error) {
	return s.history(ctx, "forward", `() => history.forward()`)
}

// history triggers a history step and then waits a fixed settle delay.
// No load event is awaited, so a slow page may still be loading.
func (s *Session) history(ctx context.Context, op, js string) (PageInfo, error) {
	page, err := s.activePage(ctx, op)
	if err != nil {
		return PageInfo{}, err
	}

	s.refs.Reset()
	if _, err := page.Eval(js); err != nil {
		return PageInfo{}, execErr(op, "history navigation failed", err)
	}
	if err := sleepCtx(ctx, s.cfg.ResolveHistorySettle()); err != nil {
		return PageInfo{}, execErr(op, "interrupted while settling", err)
	}

	info, err := page.Info()
	if err != nil {
		return PageInfo{}, execErr(op, "failed to read page info", err)
	}
	return PageInfo{URL: info.URL, Title: info.Title, Status: "navigated"}, nil
}

// ReadPage fetches the accessibility tree of the active tab and rebuilds
// the reference table from it.
func (s *Session) ReadPage(ctx context.Context, filter Filter) (Snapshot, error) {
	// a failed read leaves no stale references behind
	s.refs.Reset()

	page, err := s.activePage(ctx, "read_page")
	if err != nil {
		return Snapshot{}, err
	}

	tree, err := proto.AccessibilityGetFullAXTree{}.Call(page)
	if err != nil {
		return Snapshot{}, execErr("read_page", "failed to fetch accessibility tree", err)
	}
	info, err := page.Info()
	if err != nil {
		return Snapshot{}, execErr("read_page", "failed to read page info", err)
	}

	text := Compress(axNodesFromProto(tree.Nodes), info.URL, info.Title, filter, s.refs)
	refs := s.refs.Entries()
	L_debug("browser: read page", "session", s.ID, "url", info.URL, "nodes", len(tree.Nodes), "refs", len(refs))
	return Snapshot{URL: info.URL, Title: info.Title, Text: text, Count: len(refs), Refs: refs}, nil
}

// Click resolves ref and clicks the centre of its content box.
func (s *Session) Click(ctx context.Context, ref string) (ElementRef, error) {
	return s.click(ctx, "click", ref)
}

func (s *Session) click(ctx context.Context, op, token string) (ElementRef, error) {
	ref, ok := s.refs.Lookup(token)
	if !ok {
		return ElementRef{}, unknownRef(op, token)
	}

	page, err := s.activePage(ctx, op)
	if err != nil {
		return ElementRef{}, err
	}

	node := proto.DOMBackendNodeID(ref.BackendNodeID)
	if err := (proto.DOMScrollIntoViewIfNeeded{BackendNodeID: node}).Call(page); err != nil {
		return ElementRef{}, execErr(op, fmt.Sprintf("failed to scroll %s into view", ref.Token), err)
	}
	box, err := proto.DOMGetBoxModel{BackendNodeID: node}.Call(page)
	if err != nil {
		return ElementRef{}, execErr(op, fmt.Sprintf("failed to get box model for %s", ref.Token), err)
	}
	x, y, err := quadCenter(box.Model.Content)
	if err != nil {
		return ElementRef{}, execErr(op, fmt.Sprintf("%s is not rendered", ref.Token), err)
	}

	for _, typ := range []proto.InputDispatchMouseEventType{
		proto.InputDispatchMouseEventTypeMousePressed,
		proto.InputDispatchMouseEventTypeMouseReleased,
	} {
		err := proto.InputDispatchMouseEvent{
			Type:       typ,
			X:          x,
			Y:          y,
			Button:     proto.InputMouseButtonLeft,
			ClickCount: 1,
		}.Call(page)
		if err != nil {
			return ElementRef{}, execErr(op, fmt.Sprintf("failed to dispatch %s", typ), err)
		}
	}

	L_debug("browser: clicked", "session", s.ID, "ref", ref.Token, "label", ref.Label, "x", x, "y", y)
	return ref, nil
}

func unknownRef(op, token string) *Error {
	return invalidParams(op, "unknown element reference %q; call read_page first to get current references", token)
}

// quadCenter returns the mean of a quad's four corners. Fewer than four
// corner pairs means the element has no rendered box.
func quadCenter(quad []float64) (float64, float64, error) {
	if len(quad) < 8 {
		return 0, 0, fmt.Errorf("box model has %d coordinates, need 8", len(quad))
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += quad[i]
		y += quad[i+1]
	}
	return x / 4, y / 4, nil
}

// Type clicks ref to focus it, then inserts text in one call.
func (s *Session) Type(ctx context.Context, ref, text string) (ElementRef, error) {
	el, err := s.click(ctx, "type", ref)
	if err != nil {
		return ElementRef{}, err
	}
	if err := sleepCtx(ctx, s.cfg.ResolveFocusSettle()); err != nil {
		return ElementRef{}, execErr("type", "interrupted while focusing", err)
	}

	page, err := s.activePage(ctx, "type")
	if err != nil {
		return ElementRef{}, err
	}
	if err := (proto.InputInsertText{Text: text}).Call(page); err != nil {
		return ElementRef{}, execErr("type", "failed to insert text", err)
	}
	return el, nil
}

// scrollStep is the pixel distance of one scroll unit.
const scrollStep = 100

// DefaultScrollAmount is used when the caller gives no amount.
const DefaultScrollAmount = 3

// scrollDelta converts a direction and step count into a pixel offset.
func scrollDelta(direction string, amount int) (int, int, error) {
	if amount <= 0 {
		amount = DefaultScrollAmount
	}
	d := amount * scrollStep
	switch direction {
	case "up":
		return 0, -d, nil
	case "down":
		return 0, d, nil
	case "left":
		return -d, 0, nil
	case "right":
		return d, 0, nil
	default:
		return 0, 0, invalidParams("scroll", "invalid direction %q (use up, down, left or right)", direction)
	}
}

// Scroll scrolls the window relative to its current position.
func (s *Session) Scroll(ctx context.Context, direction string, amount int) (ScrollPosition, error) {
	dx, dy, err := scrollDelta(direction, amount)
	if err != nil {
		return ScrollPosition{}, err
	}
	page, err := s.activePage(ctx, "scroll")
	if err != nil {
		return ScrollPosition{}, err
	}

	res, err := page.Eval(`(dx, dy) => {
		window.scrollBy(dx, dy);
		return { x: window.scrollX, y: window.scrollY };
	}`, dx, dy)
	if err != nil {
		return ScrollPosition{}, execErr("scroll", "scroll failed", err)
	}

	var pos ScrollPosition
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &pos); err != nil {
		return ScrollPosition{}, execErr("scroll", "unexpected scroll result", err)
	}
	return pos, nil
}

const (
	DefaultWaitTimeout = 5 * time.Second
	MaxWaitTimeout     = 60 * time.Second
	waitPollInterval   = 100 * time.Millisecond
)

// ClampWaitTimeout applies the default and the upper bound.
func ClampWaitTimeout(ms int) time.Duration {
	if ms <= 0 {
		return DefaultWaitTimeout
	}
	d := time.Duration(ms) * time.Millisecond
	if d > MaxWaitTimeout {
		return MaxWaitTimeout
	}
	return d
}

const selectorProbe = `(sel) => {
	try {
		return document.querySelector(sel) !== null;
	} catch (e) {
		return null;
	}
}`

// Wait polls for selector until it appears or timeout passes. Running out
// of time is a normal outcome, not an error. Without a selector it is a
// plain delay.
func (s *Session) Wait(ctx context.Context, selector string, timeout time.Duration) (WaitResult, error) {
	start := time.Now()
	if strings.TrimSpace(selector) == "" {
		if err := sleepCtx(ctx, timeout); errors.Is(err, context.Canceled) {
			return WaitResult{}, execErr("wait", "interrupted", err)
		}
		return WaitResult{Found: true, Elapsed: time.Since(start)}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := s.activePage(waitCtx, "wait")
	if err != nil {
		return WaitResult{}, err
	}

	limiter := rate.NewLimiter(rate.Every(waitPollInterval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			break
		}
		res, err := page.Eval(selectorProbe, selector)
		if err != nil {
			// the document may be mid-navigation; keep polling
			L_trace("browser: wait probe failed", "selector", selector, "error", err)
			continue
		}
		if res.Value.Nil() {
			return WaitResult{}, invalidParams("wait", "invalid CSS selector %q", selector)
		}
		if res.Value.Bool() {
			return WaitResult{Found: true, Elapsed: time.Since(start)}, nil
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return WaitResult{}, execErr("wait", "interrupted", ctx.Err())
	}
	return WaitResult{Found: false, Elapsed: time.Since(start)}, nil
}

// Eval evaluates expression in the active tab and returns its value
// as-is. Promises are awaited.
func (s *Session) Eval(ctx context.Context, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, invalidParams("eval_js", "expression is required")
	}
	page, err := s.activePage(ctx, "eval_js")
	if err != nil {
		return nil, err
	}

	res, err := proto.RuntimeEvaluate{
		Expression:    expression,
		ReturnByValue: true,
		AwaitPromise:  true,
	}.Call(page)
	if err != nil {
		return nil, execErr("eval_js", "evaluation failed", err)
	}
	if res.ExceptionDetails != nil {
		return nil, execErr("eval_js", exceptionText(res.ExceptionDetails), nil)
	}
	if res.Result == nil {
		return nil, nil
	}
	return res.Result.Value.Val(), nil
}

func exceptionText(d *proto.RuntimeExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != "" {
		return "script threw: " + d.Exception.Description
	}
	return "script threw: " + d.Text
}
