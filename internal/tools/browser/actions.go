package browser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	driver "github.com/roelfdiedericks/goclaw-browser/internal/browser"
)

// Action is one parsed request. Exactly one concrete type is produced per
// call; its fields are only the parameters that action accepts.
type Action interface {
	Name() string
	validate() error
}

type NavigateAction struct {
	URL string `json:"url"`
}

type BackAction struct{}

type ForwardAction struct{}

type ReadPageAction struct {
	Filter string `json:"filter,omitempty"`

	filter driver.Filter
}

type ClickAction struct {
	Ref   string `json:"ref,omitempty"`
	RefID string `json:"ref_id,omitempty"`
}

type TypeAction struct {
	Ref   string  `json:"ref,omitempty"`
	RefID string  `json:"ref_id,omitempty"`
	Text  *string `json:"text"`
}

type ScrollAction struct {
	Direction string `json:"direction"`
	Amount    int    `json:"amount,omitempty"`
}

type ScreenshotAction struct {
	FullPage bool   `json:"full_page,omitempty"`
	Format   string `json:"format,omitempty"`
	Quality  int    `json:"quality,omitempty"`
}

type ExtractAction struct {
	Selector string `json:"selector,omitempty"`
	Mode     string `json:"mode,omitempty"`

	mode driver.ExtractMode
}

type WaitAction struct {
	Selector  string `json:"selector,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

type EvalAction struct {
	Expression string `json:"expression"`
	JQ         string `json:"jq,omitempty"`
}

type TabsAction struct{}

type NewTabAction struct {
	URL string `json:"url,omitempty"`
}

type SwitchTabAction struct {
	TabID string `json:"tab_id"`
}

type CloseTabAction struct {
	TabID string `json:"tab_id,omitempty"`
}

func (NavigateAction) Name() string   { return "navigate" }
func (BackAction) Name() string       { return "back" }
func (ForwardAction) Name() string    { return "forward" }
func (ReadPageAction) Name() string   { return "read_page" }
func (ClickAction) Name() string      { return "click" }
func (TypeAction) Name() string       { return "type" }
func (ScrollAction) Name() string     { return "scroll" }
func (ScreenshotAction) Name() string { return "screenshot" }
func (ExtractAction) Name() string    { return "extract" }
func (WaitAction) Name() string       { return "wait" }
func (EvalAction) Name() string       { return "eval_js" }
func (TabsAction) Name() string       { return "tabs" }
func (NewTabAction) Name() string     { return "new_tab" }
func (SwitchTabAction) Name() string  { return "switch_tab" }
func (CloseTabAction) Name() string   { return "close_tab" }

var actionFactories = map[string]func() Action{
	"navigate":   func() Action { return &NavigateAction{} },
	"back":       func() Action { return &BackAction{} },
	"forward":    func() Action { return &ForwardAction{} },
	"read_page":  func() Action { return &ReadPageAction{} },
	"click":      func() Action { return &ClickAction{} },
	"type":       func() Action { return &TypeAction{} },
	"scroll":     func() Action { return &ScrollAction{} },
	"screenshot": func() Action { return &ScreenshotAction{} },
	"extract":    func() Action { return &ExtractAction{} },
	"wait":       func() Action { return &WaitAction{} },
	"eval_js":    func() Action { return &EvalAction{} },
	"tabs":       func() Action { return &TabsAction{} },
	"new_tab":    func() Action { return &NewTabAction{} },
	"switch_tab": func() Action { return &SwitchTabAction{} },
	"close_tab":  func() Action { return &CloseTabAction{} },
}

// ActionNames lists every accepted action, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actionFactories))
	for name := range actionFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseAction decodes input into the variant named by its "action" field.
// Unknown actions, unknown fields and missing required parameters are
// all invalid-parameter errors.
func ParseAction(input json.RawMessage) (Action, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		return nil, invalid("input is empty")
	}

	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(input, &head); err != nil {
		return nil, invalid("invalid input: %v", err)
	}
	name := strings.TrimSpace(head.Action)
	if name == "" {
		return nil, invalid("action is required (one of: %s)", strings.Join(ActionNames(), ", "))
	}
	factory, ok := actionFactories[name]
	if !ok {
		return nil, invalid("unknown action %q (one of: %s)", name, strings.Join(ActionNames(), ", "))
	}

	act := factory()
	if err := decodeStrict(input, act); err != nil {
		return nil, invalid("%s: %v", name, err)
	}
	if err := act.validate(); err != nil {
		return nil, err
	}
	return act, nil
}

// decodeStrict decodes into v, rejecting fields v does not declare.
// The "action" tag itself is allowed through.
func decodeStrict(input json.RawMessage, v Action) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return err
	}
	delete(fields, "action")
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func invalid(format string, args ...any) error {
	return &driver.Error{Kind: driver.KindInvalidParams, Op: "parse", Msg: fmt.Sprintf(format, args...)}
}

// resolveRef merges the two spellings of the element reference.
func resolveRef(op, ref, refID string) (string, error) {
	ref, refID = strings.TrimSpace(ref), strings.TrimSpace(refID)
	switch {
	case ref == "" && refID == "":
		return "", invalid("%s: ref is required (e.g. \"@e1\" from read_page)", op)
	case ref == "":
		return refID, nil
	case refID == "" || driver.NormalizeRef(ref) == driver.NormalizeRef(refID):
		return ref, nil
	default:
		return "", invalid("%s: ref %q and ref_id %q disagree", op, ref, refID)
	}
}

func (a *NavigateAction) validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return invalid("navigate: url is required")
	}
	return nil
}

func (*BackAction) validate() error    { return nil }
func (*ForwardAction) validate() error { return nil }
func (*TabsAction) validate() error    { return nil }
func (*NewTabAction) validate() error  { return nil }

func (a *ReadPageAction) validate() error {
	f, err := driver.ParseFilter(a.Filter)
	if err != nil {
		return err
	}
	a.filter = f
	return nil
}

func (a *ClickAction) validate() error {
	ref, err := resolveRef("click", a.Ref, a.RefID)
	if err != nil {
		return err
	}
	a.Ref, a.RefID = ref, ""
	return nil
}

func (a *TypeAction) validate() error {
	ref, err := resolveRef("type", a.Ref, a.RefID)
	if err != nil {
		return err
	}
	// "" is allowed; an absent field is not
	if a.Text == nil {
		return invalid("type: text is required")
	}
	a.Ref, a.RefID = ref, ""
	return nil
}

func (a *ScrollAction) validate() error {
	if a.Amount < 0 {
		return invalid("scroll: amount must not be negative")
	}
	switch a.Direction {
	case "up", "down", "left", "right":
		return nil
	default:
		return invalid("scroll: direction must be one of up, down, left, right (got %q)", a.Direction)
	}
}

func (a *ScreenshotAction) validate() error {
	if a.Quality < 0 || a.Quality > 100 {
		return invalid("screenshot: quality must be between 0 and 100")
	}
	return nil
}

func (a *ExtractAction) validate() error {
	m, err := driver.ParseExtractMode(a.Mode)
	if err != nil {
		return err
	}
	a.mode = m
	return nil
}

func (a *WaitAction) validate() error {
	if a.TimeoutMS < 0 {
		return invalid("wait: timeout_ms must not be negative")
	}
	return nil
}

func (a *EvalAction) validate() error {
	if strings.TrimSpace(a.Expression) == "" {
		return invalid("eval_js: expression is required")
	}
	return nil
}

func (a *SwitchTabAction) validate() error {
	if strings.TrimSpace(a.TabID) == "" {
		return invalid("switch_tab: tab_id is required (see the tabs action)")
	}
	return nil
}

func (*CloseTabAction) validate() error { return nil }
