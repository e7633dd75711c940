package browser

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

// ExtractMode selects how extracted content is rendered.
type ExtractMode string

const (
	ExtractText     ExtractMode = "text"     // innerText
	ExtractArticle  ExtractMode = "article"  // reader-mode main content
	ExtractMarkdown ExtractMode = "markdown" // outerHTML converted to Markdown
)

// ParseExtractMode validates a mode name; empty means text.
func ParseExtractMode(s string) (ExtractMode, error) {
	switch m := ExtractMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ExtractText, nil
	case ExtractText, ExtractArticle, ExtractMarkdown:
		return m, nil
	default:
		return "", invalidParams("extract", "unknown mode %q (use text, article or markdown)", s)
	}
}

// Extraction is the content of one element (or the whole document).
type Extraction struct {
	Found    bool        `json:"found"`
	Selector string      `json:"selector,omitempty"`
	Mode     ExtractMode `json:"mode"`
	Title    string      `json:"title,omitempty"`
	Text     string      `json:"text"`
}

const extractScript = `(sel, wantHTML) => {
	let el;
	if (sel) {
		try {
			el = document.querySelector(sel);
		} catch (e) {
			return { invalid: String((e && e.message) || e) };
		}
	} else {
		el = document.body || document.documentElement;
	}
	if (!el) {
		return { found: false };
	}
	const html = !wantHTML ? '' : (sel ? el.outerHTML : document.documentElement.outerHTML);
	return { found: true, text: wantHTML ? '' : (el.innerText || ''), html: html, url: location.href };
}`

type extractRaw struct {
	Invalid string `json:"invalid"`
	Found   bool   `json:"found"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
	URL     string `json:"url"`
}

// Extract returns the text of the element matching selector, or of the
// document body when selector is empty. A selector that matches nothing
// gives Found=false, not an error.
func (s *Session) Extract(ctx context.Context, selector string, mode ExtractMode) (Extraction, error) {
	if mode == "" {
		mode = ExtractText
	}
	page, err := s.activePage(ctx, "extract")
	if err != nil {
		return Extraction{}, err
	}

	res, err := page.Eval(extractScript, selector, mode != ExtractText)
	if err != nil {
		return Extraction{}, execErr("extract", "extraction script failed", err)
	}
	var raw extractRaw
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &raw); err != nil {
		return Extraction{}, execErr("extract", "unexpected extraction result", err)
	}
	if raw.Invalid != "" {
		return Extraction{}, invalidParams("extract", "invalid CSS selector %q: %s", selector, raw.Invalid)
	}

	out := Extraction{Found: raw.Found, Selector: selector, Mode: mode}
	if !raw.Found {
		return out, nil
	}

	switch mode {
	case ExtractText:
		out.Text = raw.Text
	case ExtractArticle:
		out.Title, out.Text, err = articleText(raw.HTML, raw.URL)
	case ExtractMarkdown:
		out.Text, err = htmltomd.ConvertString(raw.HTML)
		if err != nil {
			err = execErr("extract", "markdown conversion failed", err)
		}
	}
	if err != nil {
		return Extraction{}, err
	}
	return out, nil
}

// articleText runs reader-mode extraction over html.
func articleText(html, pageURL string) (string, string, error) {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", "", execErr("extract", "reader-mode extraction failed", err)
	}
	L_trace("browser: extracted article", "url", pageURL, "title", article.Title, "chars", len(article.TextContent))
	return article.Title, strings.TrimSpace(article.TextContent), nil
}
