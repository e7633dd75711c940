package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/roelfdiedericks/goclaw-browser/internal/config"
	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	ConfigFile   string `name:"config" short:"c" help:"Config file (default: ./goclaw-browser.* then ~/.goclaw/goclaw-browser.*)." type:"path"`
	LogLevel     string `name:"log-level" help:"Log level: trace, debug, info, warn, error." enum:"trace,debug,info,warn,error," default:""`
	Profile      string `help:"Browser profile to use."`
	Headful      bool   `help:"Show the browser window."`
	BlockPrivate bool   `name:"block-private" help:"Refuse loopback, private and cloud metadata URLs."`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Run      RunCmd      `cmd:"" help:"Run browser actions given as JSON arguments or stdin lines."`
	Locate   LocateCmd   `cmd:"" help:"Show which browser executable would be used."`
	Profiles ProfilesCmd `cmd:"" help:"Manage persistent browser profiles."`
	Audit    AuditCmd    `cmd:"" help:"Show recently recorded actions."`
	Config   ConfigCmd   `cmd:"" help:"Configuration helpers."`
	Version  VersionCmd  `cmd:"" help:"Print the version."`
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Printf("goclaw-browser %s\n", version)
	return nil
}

// load reads the config file and applies command-line overrides.
func (g *Globals) load() (*config.Config, error) {
	cfg, path, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}

	overrides := config.Config{LogLevel: g.LogLevel}
	overrides.Browser.Profile = g.Profile
	overrides.Browser.BlockPrivateNetworks = g.BlockPrivate
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	// false can't be merged, so headful is applied directly
	if g.Headful {
		cfg.Browser.Headless = false
	}

	logCfg := DefaultConfig()
	logCfg.Level = ParseLevel(cfg.LogLevel)
	Init(logCfg)

	if path != "" {
		L_debug("config: using file", "path", path)
	}
	return cfg, nil
}

func main() {
	Init(DefaultConfig())

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("goclaw-browser"),
		kong.Description("Drive a real browser with compact, reference-based actions."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
