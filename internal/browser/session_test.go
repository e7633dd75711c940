package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// detachedSession has no browser behind it. Any path that reaches the
// protocol fails with "no active tab", so the tests below prove that
// invalid input is rejected before that point.
func detachedSession(cfg BrowserConfig) *Session {
	return &Session{ID: "test", cfg: cfg, tabs: map[string]*rod.Page{}, refs: NewRefTable()}
}

func TestClickUnknownRefAfterRead(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	Compress([]AXNode{{Role: "button", Name: "Submit", BackendNodeID: 7}}, "https://example.com", "", FilterInteractive, s.Refs())
	require.Equal(t, 1, s.Refs().Len())

	_, err := s.Click(context.Background(), "@e99")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidParams))
	assert.Contains(t, err.Error(), "read_page")
	assert.NotContains(t, err.Error(), "no active tab")
}

func TestTypeUnknownRefUsesClickPath(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	_, err := s.Type(context.Background(), "e1", "hello")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidParams))
	assert.Contains(t, err.Error(), "type:")
}

func TestKnownRefReachesProtocol(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	Compress([]AXNode{{Role: "link", Name: "Home", BackendNodeID: 3}}, "u", "", FilterInteractive, s.Refs())

	_, err := s.Click(context.Background(), "e1")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExecution))
	assert.Contains(t, err.Error(), "no active tab")
}

func TestScrollRejectsBadDirectionFirst(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	_, err := s.Scroll(context.Background(), "diagonal", 2)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestScrollDelta(t *testing.T) {
	tests := []struct {
		dir    string
		amount int
		dx, dy int
	}{
		{"down", 3, 0, 300},
		{"up", 1, 0, -100},
		{"left", 2, -200, 0},
		{"right", 0, 300, 0}, // default amount
		{"down", 5, 0, 500},
	}
	for _, tt := range tests {
		dx, dy, err := scrollDelta(tt.dir, tt.amount)
		require.NoError(t, err, tt.dir)
		assert.Equal(t, tt.dx, dx, tt.dir)
		assert.Equal(t, tt.dy, dy, tt.dir)
	}

	for _, dir := range []string{"", "DOWN", " up"} {
		_, _, err := scrollDelta(dir, 1)
		assert.True(t, IsKind(err, KindInvalidParams), "%q", dir)
	}
}

func TestQuadCenter(t *testing.T) {
	x, y, err := quadCenter([]float64{10, 20, 110, 20, 110, 60, 10, 60})
	require.NoError(t, err)
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 40.0, y)

	x, y, err = quadCenter([]float64{0, 0, 4, 2, 2, 6, -2, 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 3.0, y)

	_, _, err = quadCenter([]float64{1, 2, 3, 4, 5, 6})
	assert.Error(t, err)
	_, _, err = quadCenter(nil)
	assert.Error(t, err)
}

func TestNavigateValidation(t *testing.T) {
	cfg := DefaultBrowserConfig()
	cfg.BlockPrivateNetworks = true
	s := detachedSession(cfg)

	_, err := s.Navigate(context.Background(), "  ")
	assert.True(t, IsKind(err, KindInvalidParams))

	_, err = s.Navigate(context.Background(), "http://127.0.0.1:8080/admin")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidParams))
	assert.Contains(t, err.Error(), "loopback")

	_, err = s.NewTab(context.Background(), "file:///etc/passwd")
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestEvalRequiresExpression(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	_, err := s.Eval(context.Background(), "")
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestScreenshotOptionValidation(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	_, err := s.Screenshot(context.Background(), ScreenshotOptions{Format: "gif"})
	assert.True(t, IsKind(err, KindInvalidParams))
	_, err = s.Screenshot(context.Background(), ScreenshotOptions{Format: "jpeg", Quality: 101})
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestTabValidation(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	fill(s.Refs(), "a")

	_, err := s.SwitchTab(context.Background(), "nope")
	assert.True(t, IsKind(err, KindInvalidParams))
	assert.Equal(t, 1, s.Refs().Len(), "failed switch keeps references")

	_, err = s.CloseTab(context.Background(), "nope")
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestReadPageResetsRefsEvenOnFailure(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	fill(s.Refs(), "a", "b")

	_, err := s.ReadPage(context.Background(), FilterInteractive)
	require.Error(t, err)
	assert.True(t, s.Refs().IsEmpty())
}

func TestRemoveTabRestoresPrevious(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	s.tabs = map[string]*rod.Page{"A": nil, "B": nil, "C": nil}
	s.order = []string{"A", "B", "C"}

	// C was opened from A, then dropped
	s.active = "C"
	assert.True(t, s.removeTabLocked("C", "A"))
	assert.Equal(t, "A", s.active)
	assert.Equal(t, []string{"A", "B"}, s.order)
	assert.NotContains(t, s.tabs, "C")

	// restore target gone: fall back to the newest tab
	assert.True(t, s.removeTabLocked("A", "C"))
	assert.Equal(t, "B", s.active)

	s.tabs["D"] = nil
	s.order = append(s.order, "D")
	assert.False(t, s.removeTabLocked("D", ""), "inactive tab")
	assert.Equal(t, "B", s.active)
}

func TestWaitWithoutSelectorIsADelay(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	res, err := s.Wait(context.Background(), "", 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.GreaterOrEqual(t, res.Elapsed, 20*time.Millisecond)
}

func TestClampWaitTimeout(t *testing.T) {
	assert.Equal(t, DefaultWaitTimeout, ClampWaitTimeout(0))
	assert.Equal(t, 250*time.Millisecond, ClampWaitTimeout(250))
	assert.Equal(t, MaxWaitTimeout, ClampWaitTimeout(10*60*1000))
}

func TestCloseIsIdempotent(t *testing.T) {
	s := detachedSession(DefaultBrowserConfig())
	fill(s.Refs(), "a", "b")
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, s.Refs().IsEmpty())
}

func TestParseExtractMode(t *testing.T) {
	m, err := ParseExtractMode("")
	require.NoError(t, err)
	assert.Equal(t, ExtractText, m)
	m, err = ParseExtractMode("Markdown")
	require.NoError(t, err)
	assert.Equal(t, ExtractMarkdown, m)
	_, err = ParseExtractMode("pdf")
	assert.True(t, IsKind(err, KindInvalidParams))
}

func TestArticleText(t *testing.T) {
	html := `<html><head><title>Release notes</title></head><body>
		<nav><a href="/">Home</a></nav>
		<article><h1>Release notes</h1>
		<p>` + strings.Repeat("The browser tool now reuses one session across calls. ", 20) + `</p>
		<p>` + strings.Repeat("References are reset on every navigation. ", 20) + `</p>
		</article></body></html>`

	title, text, err := articleText(html, "https://example.com/notes")
	require.NoError(t, err)
	assert.Equal(t, "Release notes", title)
	assert.Contains(t, text, "reuses one session")
}
