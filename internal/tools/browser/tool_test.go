package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelfdiedericks/goclaw-browser/internal/audit"
	driver "github.com/roelfdiedericks/goclaw-browser/internal/browser"
	"github.com/roelfdiedericks/goclaw-browser/internal/tools"
	"github.com/roelfdiedericks/goclaw-browser/internal/types"
)

func newTestTool(t *testing.T, fake *fakeDriver, opts ...Option) (*Tool, *atomic.Int32) {
	t.Helper()
	var launches atomic.Int32
	cfg := driver.DefaultBrowserConfig()
	opts = append([]Option{
		WithLauncher(func(context.Context, driver.BrowserConfig) (Driver, error) {
			launches.Add(1)
			return fake, nil
		}),
		WithTokenCounter(func(s string) int { return len(s) / 4 }),
	}, opts...)
	tool := NewTool(cfg, opts...)
	t.Cleanup(func() { tool.Close() })
	return tool, &launches
}

func run(t *testing.T, tool *Tool, input string) *types.ToolResult {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(input))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestToolImplementsFramework(t *testing.T) {
	tool := NewTool(driver.DefaultBrowserConfig())
	var _ tools.Tool = tool
	assert.True(t, tools.RequiresApproval(tool))
	assert.True(t, tools.HasUntrustedOutput(tool))
	assert.Equal(t, "browser", tool.Name())

	def := tools.ToDefinition(tool)
	assert.True(t, def.RequiresApproval)
	props := def.InputSchema["properties"].(map[string]any)
	assert.Equal(t, ActionNames(), props["action"].(map[string]any)["enum"])
}

func TestUnknownActionNeverLaunches(t *testing.T) {
	tool, launches := newTestTool(t, newFakeDriver())

	res := run(t, tool, `{"action":"teleport"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)
	assert.Contains(t, res.GetText(), "unknown action")
	assert.Zero(t, launches.Load())
}

func TestReadThenClick(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"read_page"}`)
	require.False(t, res.IsError, res.GetText())
	assert.Contains(t, res.GetText(), `@e1: button "Submit"`)
	assert.Contains(t, res.GetText(), `@e2: link "Home"`)
	assert.NotContains(t, res.GetText(), "Welcome")
	assert.Equal(t, 2, res.Payload["count"])
	assert.Equal(t, len(res.GetText())/4, res.Payload["tokens"])
	assert.Equal(t, "https://example.com", res.Payload["url"])
	assert.Equal(t, []map[string]any{
		{"ref": "@e1", "label": `button "Submit"`},
		{"ref": "@e2", "label": `link "Home"`},
	}, res.Payload["refs"])

	res = run(t, tool, `{"action":"click","ref":"@e1"}`)
	require.False(t, res.IsError, res.GetText())
	assert.Equal(t, "clicked", res.Payload["status"])
	assert.Equal(t, "@e1", res.Payload["ref"])
	assert.Equal(t, `button "Submit"`, res.Payload["label"])

	// scenario: a token that was never assigned
	res = run(t, tool, `{"action":"click","ref":"@e99"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)
	assert.Contains(t, res.GetText(), "read_page")
}

func TestRefAndRefIDAreEquivalent(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)
	run(t, tool, `{"action":"read_page"}`)

	a := run(t, tool, `{"action":"type","ref":"e2","text":"hi"}`)
	b := run(t, tool, `{"action":"type","ref_id":"@e2","text":"hi"}`)
	require.False(t, a.IsError, a.GetText())
	require.False(t, b.IsError, b.GetText())
	assert.Equal(t, a.Payload, b.Payload)
	assert.Equal(t, 2, a.Payload["chars"])
}

func TestTypeWithoutTextTouchesNothing(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)
	run(t, tool, `{"action":"read_page"}`)

	res := run(t, tool, `{"action":"type","ref":"@e1"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)
	assert.Contains(t, res.GetText(), "text is required")
	assert.Equal(t, []string{"read_page"}, fake.Calls())
}

func TestClickBeforeReadDoesNotLaunch(t *testing.T) {
	fake := newFakeDriver()
	tool, launches := newTestTool(t, fake)

	res := run(t, tool, `{"action":"click","ref":"e1"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)
	assert.Contains(t, res.GetText(), "call read_page first")
	assert.Zero(t, launches.Load())

	// the session exists but nothing has been read since navigation
	run(t, tool, `{"action":"navigate","url":"https://example.com"}`)
	res = run(t, tool, `{"action":"type","ref":"e1","text":"x"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"navigate"}, fake.Calls())
}

func TestConcurrentFirstCallsLaunchOnce(t *testing.T) {
	fake := newFakeDriver()
	var launches atomic.Int32
	release := make(chan struct{})
	tool := NewTool(driver.DefaultBrowserConfig(), WithLauncher(func(context.Context, driver.BrowserConfig) (Driver, error) {
		launches.Add(1)
		<-release
		return fake, nil
	}))
	defer tool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"scroll","direction":"down"}`))
			assert.NoError(t, err)
			assert.False(t, res.IsError)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), launches.Load())
	assert.Len(t, fake.Calls(), 16)
}

func TestLaunchFailureIsRetriedOnNextCall(t *testing.T) {
	fake := newFakeDriver()
	var attempts atomic.Int32
	tool := NewTool(driver.DefaultBrowserConfig(), WithLauncher(func(context.Context, driver.BrowserConfig) (Driver, error) {
		if attempts.Add(1) == 1 {
			return nil, &driver.Error{Kind: driver.KindExecution, Op: "launch", Msg: "browser not found; install Chromium"}
		}
		return fake, nil
	}))
	defer tool.Close()

	res := run(t, tool, `{"action":"back"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "execution", res.ErrorKind)
	assert.Contains(t, res.GetText(), "install")

	res = run(t, tool, `{"action":"back"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "navigated", res.Payload["status"])
}

func TestNavigateErrorEnvelope(t *testing.T) {
	fake := newFakeDriver()
	fake.navigateErr = &driver.Error{Kind: driver.KindExternal, Op: "navigate", Msg: "navigation failed", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"navigate","url":"https://nope.invalid"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "external_service", res.ErrorKind)
	assert.Contains(t, res.GetText(), "ERR_NAME_NOT_RESOLVED")

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error_kind":"external_service"`)
}

func TestNavigateSuccess(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"navigate","url":"https://example.com"}`)
	require.False(t, res.IsError)
	assert.Equal(t, map[string]any{"url": "https://example.com", "title": "Example", "status": "loaded"}, res.Payload)

	deadline, ok := fake.lastCtx.Deadline()
	require.True(t, ok, "actions run under the uniform timeout")
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 2*time.Second)
}

func TestExtractTruncatesButKeepsRaw(t *testing.T) {
	fake := newFakeDriver()
	fake.extract = driver.Extraction{Found: true, Text: strings.Repeat("a", MaxExtractChars+500)}
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"extract","selector":"main"}`)
	require.False(t, res.IsError)
	assert.Len(t, res.GetText(), MaxExtractChars)
	assert.True(t, strings.HasSuffix(res.GetText(), "..."))
	assert.Len(t, res.RawText(), MaxExtractChars+500)
	assert.Equal(t, true, res.Payload["truncated"])
	assert.Equal(t, "main", res.Payload["selector"])
	assert.Equal(t, "text", res.Payload["mode"])
}

func TestExtractShortAndMissing(t *testing.T) {
	fake := newFakeDriver()
	fake.extract = driver.Extraction{Found: true, Title: "Post", Text: "hello"}
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"extract","mode":"article"}`)
	assert.Equal(t, "hello", res.GetText())
	assert.Empty(t, res.Raw)
	assert.Equal(t, false, res.Payload["truncated"])
	assert.Equal(t, "Post", res.Payload["title"])
	assert.Equal(t, "article", res.Payload["mode"])

	fake.extract = driver.Extraction{Found: false}
	res = run(t, tool, `{"action":"extract","selector":"#nothing"}`)
	assert.False(t, res.IsError, "a selector that matches nothing is not an error")
	assert.Equal(t, false, res.Payload["found"])
}

func TestScreenshotResult(t *testing.T) {
	tool, _ := newTestTool(t, newFakeDriver())

	res := run(t, tool, `{"action":"screenshot","full_page":true}`)
	require.False(t, res.IsError)
	assert.True(t, res.HasMedia())
	assert.Equal(t, "png", res.Payload["format"])
	assert.Equal(t, "base64", res.Payload["encoding"])
	assert.Equal(t, true, res.Payload["full_page"])
	assert.Equal(t, "iVBORw0KGgo=", res.Payload["data"])
}

func TestWaitUsesItsOwnBound(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"wait","selector":"#missing","timeout_ms":120000}`)
	require.False(t, res.IsError)
	assert.Equal(t, false, res.Payload["found"])
	assert.Equal(t, driver.MaxWaitTimeout, fake.lastWait)
	_, hasDeadline := fake.lastCtx.Deadline()
	assert.False(t, hasDeadline)

	res = run(t, tool, `{"action":"wait"}`)
	assert.Equal(t, true, res.Payload["found"])
	assert.Equal(t, driver.DefaultWaitTimeout, fake.lastWait)
}

func TestEvalWithJQ(t *testing.T) {
	fake := newFakeDriver()
	fake.evalValue = map[string]any{"items": []any{map[string]any{"n": "a"}, map[string]any{"n": "b"}}}
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"eval_js","expression":"window.data"}`)
	require.False(t, res.IsError)
	assert.JSONEq(t, `{"items":[{"n":"a"},{"n":"b"}]}`, res.GetText())

	res = run(t, tool, `{"action":"eval_js","expression":"window.data","jq":".items[].n"}`)
	require.False(t, res.IsError, res.GetText())
	assert.Equal(t, []any{"a", "b"}, res.Payload["value"])

	res = run(t, tool, `{"action":"eval_js","expression":"window.data","jq":".items | length"}`)
	assert.Equal(t, 2, res.Payload["value"])

	res = run(t, tool, `{"action":"eval_js","expression":"window.data","jq":".items[("}`)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)

	res = run(t, tool, `{"action":"eval_js","expression":"throw new Error('boom')"}`)
	assert.Equal(t, "execution", res.ErrorKind)
}

func TestTabActionsResetReferences(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)

	res := run(t, tool, `{"action":"tabs"}`)
	require.False(t, res.IsError)
	assert.Equal(t, 2, res.Payload["count"])
	assert.Contains(t, res.GetText(), "* T1")

	run(t, tool, `{"action":"read_page"}`)
	require.False(t, fake.refs.IsEmpty())
	res = run(t, tool, `{"action":"switch_tab","tab_id":"T2"}`)
	assert.Equal(t, "switched", res.Payload["status"])
	assert.True(t, fake.refs.IsEmpty())

	res = run(t, tool, `{"action":"switch_tab"}`)
	assert.Equal(t, "invalid_parameters", res.ErrorKind)

	res = run(t, tool, `{"action":"new_tab","url":"https://example.org"}`)
	assert.Equal(t, "T3", res.Payload["tab_id"])

	res = run(t, tool, `{"action":"close_tab","tab_id":"T3"}`)
	assert.Equal(t, "closed", res.Payload["status"])
}

func TestJournalRecordsEveryAction(t *testing.T) {
	fake := newFakeDriver()
	journal := &memJournal{}
	tool, _ := newTestTool(t, fake, WithJournal(journal))

	run(t, tool, `{"action":"nope"}`)
	run(t, tool, `{"action":"navigate","url":"https://example.com"}`)
	run(t, tool, `{"action":"read_page"}`)
	run(t, tool, `{"action":"click","ref_id":"@e1"}`)
	run(t, tool, `{"action":"scroll","direction":"sideways"}`)

	entries := journal.Entries()
	require.Len(t, entries, 5)

	assert.Equal(t, "invalid", entries[0].Action)
	assert.Equal(t, audit.OutcomeError, entries[0].Outcome)
	assert.Equal(t, "invalid_parameters", entries[0].ErrorKind)

	assert.Equal(t, "navigate", entries[1].Action)
	assert.Equal(t, "https://example.com", entries[1].URL)
	assert.Equal(t, "fake-session", entries[1].SessionID)

	assert.Equal(t, "click", entries[3].Action)
	assert.Equal(t, "e1", entries[3].Ref)
	assert.Equal(t, `button "Submit"`, entries[3].Label)
	assert.Equal(t, audit.OutcomeOK, entries[3].Outcome)

	assert.Equal(t, audit.OutcomeError, entries[4].Outcome)
}

func TestCloseTearsDownOnce(t *testing.T) {
	fake := newFakeDriver()
	tool, _ := newTestTool(t, fake)

	require.NoError(t, tool.Close(), "closing before launch is a no-op")
	run(t, tool, `{"action":"forward"}`)
	require.NoError(t, tool.Close())
	require.NoError(t, tool.Close())
	assert.Equal(t, 1, fake.closed)
}
