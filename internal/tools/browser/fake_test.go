package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/roelfdiedericks/goclaw-browser/internal/audit"
	driver "github.com/roelfdiedericks/goclaw-browser/internal/browser"
)

// fakeDriver records calls instead of driving a browser.
type fakeDriver struct {
	id   string
	refs *driver.RefTable

	mu     sync.Mutex
	calls  []string
	closed int

	// canned responses
	nodes       []driver.AXNode
	navigateErr error
	extract     driver.Extraction
	evalValue   any
	lastCtx     context.Context
	lastWait    time.Duration
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		id:   "fake-session",
		refs: driver.NewRefTable(),
		nodes: []driver.AXNode{
			{Role: "button", Name: "Submit", BackendNodeID: 11},
			{Role: "link", Name: "Home", BackendNodeID: 12},
			{Role: "heading", Name: "Welcome", BackendNodeID: 13},
		},
	}
}

func (f *fakeDriver) called(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.lastCtx = ctx
}

func (f *fakeDriver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDriver) SessionID() string      { return f.id }
func (f *fakeDriver) Refs() *driver.RefTable { return f.refs }

func (f *fakeDriver) Navigate(ctx context.Context, url string) (driver.PageInfo, error) {
	f.called(ctx, "navigate")
	if f.navigateErr != nil {
		return driver.PageInfo{}, f.navigateErr
	}
	f.refs.Reset()
	return driver.PageInfo{URL: url, Title: "Example", Status: "loaded"}, nil
}

func (f *fakeDriver) Back(ctx context.Context) (driver.PageInfo, error) {
	f.called(ctx, "back")
	return driver.PageInfo{URL: "https://example.com/prev", Status: "navigated"}, nil
}

func (f *fakeDriver) Forward(ctx context.Context) (driver.PageInfo, error) {
	f.called(ctx, "forward")
	return driver.PageInfo{URL: "https://example.com/next", Status: "navigated"}, nil
}

func (f *fakeDriver) ReadPage(ctx context.Context, filter driver.Filter) (driver.Snapshot, error) {
	f.called(ctx, "read_page")
	text := driver.Compress(f.nodes, "https://example.com", "Example", filter, f.refs)
	refs := f.refs.Entries()
	return driver.Snapshot{URL: "https://example.com", Title: "Example", Text: text, Count: len(refs), Refs: refs}, nil
}

func (f *fakeDriver) Click(ctx context.Context, ref string) (driver.ElementRef, error) {
	f.called(ctx, "click")
	el, ok := f.refs.Lookup(ref)
	if !ok {
		return driver.ElementRef{}, &driver.Error{Kind: driver.KindInvalidParams, Op: "click", Msg: "unknown element reference; call read_page first"}
	}
	return el, nil
}

func (f *fakeDriver) Type(ctx context.Context, ref, text string) (driver.ElementRef, error) {
	f.called(ctx, "type")
	el, ok := f.refs.Lookup(ref)
	if !ok {
		return driver.ElementRef{}, &driver.Error{Kind: driver.KindInvalidParams, Op: "type", Msg: "unknown element reference; call read_page first"}
	}
	return el, nil
}

func (f *fakeDriver) Scroll(ctx context.Context, direction string, amount int) (driver.ScrollPosition, error) {
	f.called(ctx, "scroll")
	return driver.ScrollPosition{Y: float64(amount * 100)}, nil
}

func (f *fakeDriver) Screenshot(ctx context.Context, opts driver.ScreenshotOptions) (driver.Screenshot, error) {
	f.called(ctx, "screenshot")
	return driver.Screenshot{
		Format:   "png",
		Encoding: "base64",
		Data:     "iVBORw0KGgo=",
		FullPage: opts.FullPage,
		MimeType: "image/png",
		Width:    1920,
		Height:   1080,
	}, nil
}

func (f *fakeDriver) Extract(ctx context.Context, selector string, mode driver.ExtractMode) (driver.Extraction, error) {
	f.called(ctx, "extract")
	out := f.extract
	out.Selector, out.Mode = selector, mode
	return out, nil
}

func (f *fakeDriver) Wait(ctx context.Context, selector string, timeout time.Duration) (driver.WaitResult, error) {
	f.called(ctx, "wait")
	f.mu.Lock()
	f.lastWait = timeout
	f.mu.Unlock()
	return driver.WaitResult{Found: selector != "#missing", Elapsed: 120 * time.Millisecond}, nil
}

func (f *fakeDriver) Eval(ctx context.Context, expression string) (any, error) {
	f.called(ctx, "eval_js")
	if strings.Contains(expression, "throw") {
		return nil, &driver.Error{Kind: driver.KindExecution, Op: "eval_js", Msg: "script threw: Error: boom"}
	}
	return f.evalValue, nil
}

func (f *fakeDriver) Tabs(ctx context.Context) ([]driver.TabInfo, error) {
	f.called(ctx, "tabs")
	return []driver.TabInfo{
		{ID: "T1", URL: "https://example.com", Title: "Example", Active: true},
		{ID: "T2", URL: "about:blank"},
	}, nil
}

func (f *fakeDriver) NewTab(ctx context.Context, url string) (driver.TabInfo, error) {
	f.called(ctx, "new_tab")
	f.refs.Reset()
	return driver.TabInfo{ID: "T3", URL: url, Active: true}, nil
}

func (f *fakeDriver) SwitchTab(ctx context.Context, id string) (driver.TabInfo, error) {
	f.called(ctx, "switch_tab")
	f.refs.Reset()
	return driver.TabInfo{ID: id, Active: true}, nil
}

func (f *fakeDriver) CloseTab(ctx context.Context, id string) (driver.TabInfo, error) {
	f.called(ctx, "close_tab")
	return driver.TabInfo{ID: id}, nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// memJournal keeps entries in memory.
type memJournal struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (j *memJournal) Record(_ context.Context, e audit.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Entries() []audit.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]audit.Entry(nil), j.entries...)
}
