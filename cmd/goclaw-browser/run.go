package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/roelfdiedericks/goclaw-browser/internal/audit"
	"github.com/roelfdiedericks/goclaw-browser/internal/config"
	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
	"github.com/roelfdiedericks/goclaw-browser/internal/media"
	"github.com/roelfdiedericks/goclaw-browser/internal/tools"
	browsertool "github.com/roelfdiedericks/goclaw-browser/internal/tools/browser"
	"github.com/roelfdiedericks/goclaw-browser/internal/types"
)

// RunCmd executes actions against one browser session.
type RunCmd struct {
	Actions       []string      `arg:"" optional:"" help:"Actions as JSON objects, e.g. '{\"action\":\"navigate\",\"url\":\"https://example.com\"}'. Read from stdin, one per line, when omitted."`
	Yes           bool          `short:"y" help:"Approve every action without asking."`
	JSON          bool          `help:"Print results as JSON lines."`
	ScreenshotDir string        `name:"screenshot-dir" help:"Write screenshots to this directory." type:"path"`
	ScreenshotTTL time.Duration `name:"screenshot-ttl" help:"Delete saved screenshots older than this (0 keeps them)." default:"0s"`
}

func (r *RunCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// after the first signal, a second one kills the process
	context.AfterFunc(ctx, stop)

	var opts []browsertool.Option
	if cfg.Audit.Enabled {
		journal, err := openJournal(cfg)
		if err != nil {
			L_warn("audit: journal disabled", "error", err)
		} else {
			defer journal.Close()
			opts = append(opts, browsertool.WithJournal(journal))
		}
	}

	registry := tools.NewRegistry()
	registry.Register(browsertool.NewTool(cfg.Browser, opts...))
	// the browser process must not outlive this command
	defer func() {
		if err := registry.Close(); err != nil {
			L_warn("run: teardown failed", "error", err)
		}
	}()

	store := r.openStore()

	fromStdin := len(r.Actions) == 0
	registry.SetApprover(r.approver(fromStdin))

	next := argSource(r.Actions)
	if fromStdin {
		next = lineSource(ctx, os.Stdin)
	}

	failed := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		input, ok := next()
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			break
		}

		result, err := registry.Execute(ctx, "browser", json.RawMessage(input))
		if err != nil {
			kind := "execution"
			if errors.Is(err, tools.ErrApprovalDenied) {
				kind = "approval_denied"
			}
			result = types.ErrorResult(kind, err.Error())
		}
		if result.IsError {
			failed++
		}
		saveScreenshot(store, result)
		r.print(os.Stdout, result)
	}

	if failed > 0 {
		return fmt.Errorf("%d action(s) failed", failed)
	}
	return nil
}

func openJournal(cfg *config.Config) (*audit.Journal, error) {
	path := cfg.Audit.Path
	if path == "" {
		p, err := audit.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return audit.Open(path)
}

// approver returns the approval hook. Without --yes it asks on the
// terminal; when actions arrive on stdin there is nobody to ask.
func (r *RunCmd) approver(fromStdin bool) tools.Approver {
	if r.Yes {
		return func(context.Context, string, json.RawMessage) (bool, error) { return true, nil }
	}
	if fromStdin || !isTerminal(os.Stdin) {
		return func(context.Context, string, json.RawMessage) (bool, error) {
			return false, fmt.Errorf("no terminal to confirm on; pass --yes to approve actions")
		}
	}
	reader := bufio.NewReader(os.Stdin)
	return func(_ context.Context, tool string, input json.RawMessage) (bool, error) {
		fmt.Fprintf(os.Stderr, "%s %s %s ", warnStyle.Render("approve"), tool, string(input))
		fmt.Fprint(os.Stderr, dimStyle.Render("[y/N] "))
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func argSource(args []string) func() (string, bool) {
	i := 0
	return func() (string, bool) {
		if i >= len(args) {
			return "", false
		}
		i++
		return args[i-1], true
	}
}

// lineSource yields non-blank lines; lines starting with # are comments.
// It stops when ctx is done even if in never delivers another line.
func lineSource(ctx context.Context, in io.Reader) func() (string, bool) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			L_warn("run: reading stdin failed", "error", err)
		}
	}()

	return func() (string, bool) {
		select {
		case line, ok := <-lines:
			return line, ok
		case <-ctx.Done():
			return "", false
		}
	}
}

func (r *RunCmd) print(w io.Writer, result *types.ToolResult) {
	if r.JSON || !isTerminal(os.Stdout) {
		// image bytes are already in the payload
		out := *result
		out.Content = nil
		for _, block := range result.Content {
			if block.Type == "text" {
				out.Content = append(out.Content, block)
			}
		}
		data, err := json.Marshal(out)
		if err != nil {
			fmt.Fprintln(w, errorStyle.Render("error: ")+err.Error())
			return
		}
		fmt.Fprintln(w, string(data))
		return
	}

	if result.IsError {
		fmt.Fprintln(w, errorStyle.Render(result.ErrorKind+": ")+result.GetText())
		return
	}
	fmt.Fprintln(w, successStyle.Render("ok"))
	fmt.Fprintln(w, result.GetText())
}

// saveScreenshot writes image blocks to the screenshot store, if any.
func saveScreenshot(store *media.Store, result *types.ToolResult) {
	if store == nil || !result.HasMedia() {
		return
	}
	for _, block := range result.Content {
		if block.Type != "image" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(block.Data)
		if err != nil {
			L_warn("run: screenshot is not valid base64", "error", err)
			continue
		}
		path, err := store.Save(data, "screenshot")
		if err != nil {
			L_warn("run: failed to save screenshot", "error", err)
			continue
		}
		fmt.Fprintln(os.Stderr, dimStyle.Render("saved "+path))
	}
}

func (r *RunCmd) openStore() *media.Store {
	if r.ScreenshotDir == "" {
		return nil
	}
	store, err := media.NewStore(r.ScreenshotDir, r.ScreenshotTTL)
	if err != nil {
		L_warn("run: screenshots will not be saved", "error", err)
		return nil
	}
	if _, err := store.Prune(); err != nil {
		L_debug("run: pruning screenshots failed", "error", err)
	}
	return store
}
