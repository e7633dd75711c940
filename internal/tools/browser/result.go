package browser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	driver "github.com/roelfdiedericks/goclaw-browser/internal/browser"
	"github.com/roelfdiedericks/goclaw-browser/internal/types"
)

func errorResult(err error) *types.ToolResult {
	return types.ErrorResult(driver.KindOf(err).String(), err.Error())
}

func pageResult(info driver.PageInfo, verb string) *types.ToolResult {
	text := fmt.Sprintf("%s %s", verb, info.URL)
	if info.Title != "" {
		text += fmt.Sprintf(" (%s)", info.Title)
	}
	r := types.TextResult(text)
	r.Payload = map[string]any{
		"url":    info.URL,
		"title":  info.Title,
		"status": info.Status,
	}
	return r
}

func (t *Tool) snapshotResult(snap driver.Snapshot) *types.ToolResult {
	refs := make([]map[string]any, 0, len(snap.Refs))
	for _, ref := range snap.Refs {
		refs = append(refs, map[string]any{"ref": "@" + ref.Token, "label": ref.Label})
	}
	r := types.TextResult(snap.Text)
	r.Payload = map[string]any{
		"url":    snap.URL,
		"title":  snap.Title,
		"count":  snap.Count,
		"tokens": t.countTokens(snap.Text),
		"text":   snap.Text,
		"refs":   refs,
	}
	return r
}

func refResult(status string, ref driver.ElementRef, extra map[string]any) *types.ToolResult {
	r := types.TextResult(fmt.Sprintf("%s @%s: %s", strings.ToUpper(status[:1])+status[1:], ref.Token, ref.Label))
	r.Payload = map[string]any{
		"status": status,
		"ref":    "@" + ref.Token,
		"label":  ref.Label,
	}
	for k, v := range extra {
		r.Payload[k] = v
	}
	return r
}

func scrollResult(direction string, pos driver.ScrollPosition) *types.ToolResult {
	r := types.TextResult(fmt.Sprintf("Scrolled %s, now at x=%.0f y=%.0f", strings.ToLower(direction), pos.X, pos.Y))
	r.Payload = map[string]any{
		"status":    "scrolled",
		"direction": strings.ToLower(direction),
		"x":         pos.X,
		"y":         pos.Y,
	}
	return r
}

func screenshotResult(shot driver.Screenshot) *types.ToolResult {
	scope := "viewport"
	if shot.FullPage {
		scope = "full page"
	}
	return &types.ToolResult{
		Content: []types.ContentBlock{
			types.TextBlock(fmt.Sprintf("Screenshot of %s (%dx%d %s)", scope, shot.Width, shot.Height, shot.Format)),
			types.ImageBlock(shot.Data, shot.MimeType, "browser"),
		},
		Payload: map[string]any{
			"format":    shot.Format,
			"encoding":  shot.Encoding,
			"data":      shot.Data,
			"full_page": shot.FullPage,
			"mime_type": shot.MimeType,
			"width":     shot.Width,
			"height":    shot.Height,
		},
	}
}

// extractResult caps the text at MaxExtractChars; Raw keeps all of it.
func extractResult(ext driver.Extraction) *types.ToolResult {
	if !ext.Found {
		msg := "No element matched the selector"
		if ext.Selector == "" {
			msg = "Page has no body content"
		}
		r := types.TextResult(msg)
		r.Payload = map[string]any{"found": false, "selector": ext.Selector, "mode": string(ext.Mode), "text": ""}
		return r
	}

	text := driver.Truncate(ext.Text, MaxExtractChars)
	truncated := text != ext.Text

	r := types.TextResult(text)
	if truncated {
		r.Raw = ext.Text
	}
	r.Payload = map[string]any{
		"found":     true,
		"selector":  ext.Selector,
		"mode":      string(ext.Mode),
		"text":      text,
		"length":    utf8.RuneCountInString(ext.Text),
		"truncated": truncated,
	}
	if ext.Title != "" {
		r.Payload["title"] = ext.Title
	}
	return r
}

func waitResult(selector string, res driver.WaitResult) *types.ToolResult {
	var text string
	switch {
	case selector == "":
		text = fmt.Sprintf("Waited %s", res.Elapsed.Round(time.Millisecond))
	case res.Found:
		text = fmt.Sprintf("Found %s after %s", selector, res.Elapsed.Round(time.Millisecond))
	default:
		text = fmt.Sprintf("Timed out waiting for %s", selector)
	}
	r := types.TextResult(text)
	r.Payload = map[string]any{
		"found":      res.Found,
		"selector":   selector,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}
	return r
}

func evalResult(value any) *types.ToolResult {
	data, err := json.Marshal(value)
	text := string(data)
	if err != nil {
		text = fmt.Sprintf("%v", value)
	}
	r := types.TextResult(text)
	r.Payload = map[string]any{"value": value}
	return r
}

func tabsResult(tabs []driver.TabInfo) *types.ToolResult {
	var sb strings.Builder
	for _, tab := range tabs {
		marker := " "
		if tab.Active {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %s  %s", marker, tab.ID, tab.URL)
		if tab.Title != "" {
			fmt.Fprintf(&sb, " (%s)", tab.Title)
		}
		sb.WriteString("\n")
	}
	r := types.TextResult(strings.TrimRight(sb.String(), "\n"))
	r.Payload = map[string]any{"tabs": tabs, "count": len(tabs)}
	return r
}

func tabResult(status string, tab driver.TabInfo) *types.ToolResult {
	r := types.TextResult(fmt.Sprintf("Tab %s %s %s", tab.ID, status, tab.URL))
	r.Payload = map[string]any{
		"status": status,
		"tab_id": tab.ID,
		"url":    tab.URL,
		"title":  tab.Title,
		"active": tab.Active,
	}
	return r
}
