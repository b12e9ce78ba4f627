package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/pearstate/internal/config"
	"git.home.luguber.info/inful/pearstate/internal/logfields"
	"git.home.luguber.info/inful/pearstate/internal/state"
	"git.home.luguber.info/inful/pearstate/internal/version"
	"git.home.luguber.info/inful/pearstate/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"pearstate.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Resolve struct {
		Link     string   `arg:"" optional:"" help:"Application link (pear:// key, file:// URL or path)"`
		Dir      string   `short:"d" help:"Project root directory"`
		Store    string   `help:"Explicit storage directory"`
		TmpStore bool     `help:"Use an ephemeral storage directory"`
		Stage    bool     `help:"Stage mode (forces NODE_ENV=production)"`
		Dev      bool     `help:"Dev mode"`
		Run      bool     `help:"Run mode (production unless --dev)"`
		Pid      int      `help:"Process id to record" default:"-1"`
		Flag     []string `help:"Extra flag as key=value, passed through verbatim"`
		Pkg      bool     `help:"Also resolve the nearest package descriptor"`
	} `cmd:"" help:"Resolve launch state and print it as JSON"`

	Storage struct {
		Link     string `arg:"" help:"Application link"`
		Dir      string `short:"d" help:"Project root directory"`
		Store    string `help:"Explicit storage directory"`
		TmpStore bool   `help:"Use an ephemeral storage directory"`
	} `cmd:"" help:"Print the derived storage path for a link"`

	Pkg struct {
		Dir string `arg:"" optional:"" help:"Directory to walk upward from (default cwd)"`
	} `cmd:"" help:"Locate and print the nearest package descriptor"`

	Watch struct {
		Dir string `arg:"" optional:"" help:"Project root directory (default cwd)"`
	} `cmd:"" help:"Re-resolve and log state whenever the package descriptor changes"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Existing process env always wins over .env entries.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment variables from .env")
	}

	cfg, err := config.LoadIfPresent(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}

	// Execute command
	switch ctx.Command() {
	case "resolve", "resolve <link>":
		if err := runResolve(cfg); err != nil {
			slog.Error("Resolve failed", logfields.Error(err))
			os.Exit(1)
		}
	case "storage <link>":
		if err := runStorage(cfg); err != nil {
			slog.Error("Storage derivation failed", logfields.Error(err))
			os.Exit(1)
		}
	case "pkg", "pkg <dir>":
		if err := runPkg(); err != nil {
			slog.Error("Package lookup failed", logfields.Error(err))
			os.Exit(1)
		}
	case "watch", "watch <dir>":
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Printf("pearstate %s (built %s, commit %s)\n",
			version.Version, version.BuildTime, version.GitCommit)
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

// buildFlags merges config-file flags, recognized CLI switches, and
// repeatable --flag key=value pairs. Later sources win.
func buildFlags(cfg *config.File, stage, dev, tmpStore bool, store string, extra []string) map[string]any {
	flags := make(map[string]any)
	for k, v := range cfg.Flags {
		flags[k] = v
	}
	if stage {
		flags["stage"] = true
	}
	if dev {
		flags["dev"] = true
	}
	if tmpStore {
		flags["tmpStore"] = true
	}
	if store != "" {
		flags["store"] = store
	}
	for _, kv := range extra {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			flags[kv] = true
			continue
		}
		flags[k] = v
	}
	return flags
}

func buildState(cfg *config.File) (*state.State, error) {
	opts := state.Options{
		Flags: buildFlags(cfg, CLI.Resolve.Stage, CLI.Resolve.Dev,
			CLI.Resolve.TmpStore, CLI.Resolve.Store, CLI.Resolve.Flag),
		Dir:     firstNonEmpty(CLI.Resolve.Dir, cfg.Dir),
		Link:    firstNonEmpty(CLI.Resolve.Link, cfg.Link),
		Storage: cfg.Storage,
		Run:     CLI.Resolve.Run,
	}
	if CLI.Resolve.Pid >= 0 {
		pid := CLI.Resolve.Pid
		opts.PID = &pid
	}
	return state.New(opts)
}

func runResolve(cfg *config.File) error {
	s, err := buildState(cfg)
	if err != nil {
		return err
	}

	if CLI.Resolve.Pkg {
		pkg, err := s.ResolvePackage(context.Background())
		if err != nil {
			return err
		}
		if pkg != nil {
			slog.Debug("Resolved package descriptor",
				logfields.Dir(pkg.Dir), logfields.AppName(s.AppName()))
		}
	}

	slog.Debug("Resolved state",
		logfields.Link(s.Link), logfields.Applink(s.Applink),
		logfields.Route(s.Route), logfields.Storage(s.Storage))

	return printJSON(s)
}

func runStorage(cfg *config.File) error {
	flags := map[string]any{}
	if CLI.Storage.TmpStore {
		flags["tmpStore"] = true
	}
	if CLI.Storage.Store != "" {
		flags["store"] = CLI.Storage.Store
	}
	path, err := state.StorageFromLink(CLI.Storage.Link, flags, firstNonEmpty(CLI.Storage.Dir, cfg.Dir))
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runPkg() error {
	dir := CLI.Pkg.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}

	pkg, err := state.LocalPkg(context.Background(), dir)
	if err != nil {
		return err
	}
	if pkg == nil {
		fmt.Println("null")
		return nil
	}
	return printJSON(pkg)
}

func runWatch(cfg *config.File) error {
	dir := CLI.Watch.Dir
	if dir == "" {
		dir = cfg.Dir
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	CLI.Resolve.Dir = dir

	resolve := func(ctx context.Context) {
		s, err := buildState(cfg)
		if err != nil {
			slog.Error("Re-resolve failed", logfields.Error(err))
			return
		}
		if _, err := s.ResolvePackage(ctx); err != nil {
			slog.Error("Package re-resolve failed", logfields.Error(err))
			return
		}
		slog.Info("State re-resolved",
			logfields.Applink(s.Applink), logfields.Route(s.Route),
			logfields.AppName(s.AppName()))
	}

	w, err := watch.New(dir, resolve)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolve(ctx)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
