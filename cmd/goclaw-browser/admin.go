package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roelfdiedericks/goclaw-browser/internal/audit"
	"github.com/roelfdiedericks/goclaw-browser/internal/browser"
	"github.com/roelfdiedericks/goclaw-browser/internal/config"
	"github.com/roelfdiedericks/goclaw-browser/internal/paths"
)

// LocateCmd reports the browser executable without launching it.
type LocateCmd struct {
	Download bool `help:"Download Chromium if nothing is installed."`
}

func (c *LocateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Download {
		cfg.Browser.AutoDownload = true
	}

	loc, err := browser.NewLocator(cfg.Browser)
	if err != nil {
		return err
	}

	bin, source, err := loc.Find()
	if err != nil && cfg.Browser.AutoDownload {
		bin, err = loc.Ensure()
		source = browser.SourceDownload
	}
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("browser") + " " + bin)
	fmt.Println(dimStyle.Render(fmt.Sprintf("found via %s (override with %s)", source, browser.EnvBrowserPath)))
	return nil
}

// ProfilesCmd groups profile management.
type ProfilesCmd struct {
	List  ProfilesListCmd  `cmd:"" default:"1" help:"List profiles with their size and last use."`
	Clear ProfilesClearCmd `cmd:"" help:"Delete all cookies and storage of a profile."`
}

type ProfilesListCmd struct{}

func (ProfilesListCmd) Run(g *Globals) error {
	profiles, err := openProfiles(g)
	if err != nil {
		return err
	}
	list, err := profiles.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println(dimStyle.Render("no profiles in " + profiles.Root()))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%-20s %10s  %s", "PROFILE", "SIZE", "LAST USED")))
	for _, p := range list {
		last := "never"
		if !p.LastUsed.IsZero() {
			last = p.LastUsed.Format(time.DateTime)
		}
		fmt.Printf("%-20s %10s  %s\n", p.Name, browser.FormatSize(p.Size), dimStyle.Render(last))
	}
	return nil
}

type ProfilesClearCmd struct {
	Name string `arg:"" help:"Profile name."`
	Yes  bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *ProfilesClearCmd) Run(g *Globals) error {
	profiles, err := openProfiles(g)
	if err != nil {
		return err
	}
	if !c.Yes {
		if !isTerminal(os.Stdin) {
			return fmt.Errorf("refusing to clear %q without --yes", c.Name)
		}
		fmt.Fprintf(os.Stderr, "%s all browser state in profile %q? %s", warnStyle.Render("Delete"), c.Name, dimStyle.Render("[y/N] "))
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "yes" {
			return nil
		}
	}
	if err := profiles.Clear(c.Name); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("cleared ") + c.Name)
	return nil
}

func openProfiles(g *Globals) (*browser.Profiles, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.Browser.ResolveProfilesDir()
	if err != nil {
		return nil, err
	}
	return browser.NewProfiles(dir), nil
}

// ConfigCmd groups configuration helpers.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write a config file with the defaults."`
}

type ConfigInitCmd struct {
	Path  string `arg:"" optional:"" help:"Where to write (default: ~/.goclaw/goclaw-browser.json). The extension picks json, yaml or toml." type:"path"`
	Force bool   `help:"Overwrite an existing file (a backup is kept)."`
}

func (c *ConfigInitCmd) Run(g *Globals) error {
	path := c.Path
	if path == "" {
		p, err := paths.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	fmt.Println(successStyle.Render("wrote ") + abs)
	return nil
}

// AuditCmd shows recent entries of the action journal.
type AuditCmd struct {
	Session string `help:"Only show actions of this session."`
	Limit   int    `short:"n" default:"20" help:"How many entries to show."`
	JSON    bool   `help:"Print entries as JSON lines."`
}

func (c *AuditCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.Recent(context.Background(), c.Session, c.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(dimStyle.Render("no recorded actions"))
		return nil
	}

	// oldest first reads like a transcript
	for i := len(entries) - 1; i >= 0; i-- {
		if c.JSON || !isTerminal(os.Stdout) {
			data, err := json.Marshal(auditRecord(entries[i]))
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			continue
		}
		fmt.Println(formatEntry(entries[i]))
	}
	return nil
}

func auditRecord(e audit.Entry) map[string]any {
	rec := map[string]any{
		"id":          e.ID,
		"session_id":  e.SessionID,
		"action":      e.Action,
		"outcome":     e.Outcome,
		"duration_ms": e.Duration.Milliseconds(),
		"created_at":  e.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range map[string]string{"ref": e.Ref, "label": e.Label, "url": e.URL, "error_kind": e.ErrorKind, "message": e.Message} {
		if v != "" {
			rec[k] = v
		}
	}
	return rec
}

// formatEntry renders one journal entry as a terminal line.
func formatEntry(e audit.Entry) string {
	target := e.URL
	if e.Ref != "" {
		target = "@" + e.Ref
		if e.Label != "" {
			target += " " + e.Label
		}
	}
	line := fmt.Sprintf("%s %-10s %s", dimStyle.Render(e.CreatedAt.Local().Format(time.DateTime)), e.Action, target)
	if e.Outcome == audit.OutcomeError {
		return line + " " + errorStyle.Render(e.ErrorKind+": "+e.Message)
	}
	return line + " " + dimStyle.Render(e.Duration.Round(time.Millisecond).String())
}
