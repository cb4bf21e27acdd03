package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/hanpama/gqlproject/internal/annotate"
	"github.com/hanpama/gqlproject/internal/config"
	"github.com/hanpama/gqlproject/internal/docset"
	"github.com/hanpama/gqlproject/internal/engine"
	"github.com/hanpama/gqlproject/internal/eventbus"
	"github.com/hanpama/gqlproject/internal/language"
	"github.com/hanpama/gqlproject/internal/otel"
	"github.com/hanpama/gqlproject/internal/project"
	"github.com/hanpama/gqlproject/internal/refresh"
	"github.com/hanpama/gqlproject/internal/schemacache"
	"github.com/hanpama/gqlproject/internal/validate"
)

const rootUsage = `gqlproject — GraphQL client project checker & tools

USAGE:
  gqlproject <command> [flags]

COMMANDS:
  check            Validate tracked documents against the merged schema
  watch            Re-validate continuously as files change
  print-schema     Fetch, merge and print the project schema as SDL
  help             Show help for any command
`

const checkUsage = `check FLAGS:
  -root <dir>              Project root (default: .)
  -config <file>           Config file (default: <root>/gqlproject.yml)
  -schema.endpoint <url>   Service schema SDL endpoint (overrides config)
  -schema.file <file>      Read the service schema from a local SDL file
  -schema.tag <name>       Schema variant tag (default: current)
  -no-cache                Skip the on-disk schema cache
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: gqlproject)
  (Exits non-zero when any document has validation errors)
`

const watchUsage = `watch FLAGS:
  -root <dir>              Project root (default: .)
  -config <file>           Config file (default: <root>/gqlproject.yml)
  -schema.endpoint <url>   Service schema SDL endpoint (overrides config)
  -schema.file <file>      Read the service schema from a local SDL file
  -schema.tag <name>       Schema variant tag (default: current)
  -stats.interval <dur>    Field stats poll interval, e.g. 5m (default: 5m)
  -no-cache                Skip the on-disk schema cache
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: gqlproject)
`

const printSchemaUsage = `print-schema FLAGS:
  -root <dir>              Project root (default: .)
  -config <file>           Config file (default: <root>/gqlproject.yml)
  -schema.endpoint <url>   Service schema SDL endpoint (overrides config)
  -schema.file <file>      Read the service schema from a local SDL file
  -schema.tag <name>       Schema variant tag (default: current)
  -out <file>              Write merged SDL to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("gqlproject", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "check":
		return cmdCheck(cmdArgs)
	case "watch":
		return cmdWatch(cmdArgs)
	case "print-schema":
		return cmdPrintSchema(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "check":
		fmt.Print(checkUsage)
	case "watch":
		fmt.Print(watchUsage)
	case "print-schema":
		fmt.Print(printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// projectFlags holds the flags shared by every subcommand.
type projectFlags struct {
	rootDir        string
	cfgPath        string
	schemaEndpoint string
	schemaFile     string
	tag            string
	noCache        bool
	otelEndpoint   string
	otelService    string
}

func (f *projectFlags) register(fs *flag.FlagSet) {
	f.rootDir = "."
	f.otelService = "gqlproject"
	fs.StringVar(&f.rootDir, "root", f.rootDir, "Project root")
	fs.StringVar(&f.cfgPath, "config", f.cfgPath, "Config file")
	fs.StringVar(&f.schemaEndpoint, "schema.endpoint", f.schemaEndpoint, "Service schema SDL endpoint")
	fs.StringVar(&f.schemaFile, "schema.file", f.schemaFile, "Local service schema SDL file")
	fs.StringVar(&f.tag, "schema.tag", f.tag, "Schema variant tag")
	fs.BoolVar(&f.noCache, "no-cache", f.noCache, "Skip the on-disk schema cache")
	fs.StringVar(&f.otelEndpoint, "otel.endpoint", f.otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&f.otelService, "otel.service", f.otelService, "OpenTelemetry service name")
}

func (f *projectFlags) loadConfig() (*config.Config, error) {
	path := f.cfgPath
	if path == "" {
		path = filepath.Join(f.rootDir, config.DefaultFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.schemaEndpoint != "" {
		cfg.Service.Endpoint = f.schemaEndpoint
	}
	if f.tag != "" {
		cfg.Service.Tag = f.tag
	}
	return cfg, nil
}

func (f *projectFlags) provider(cfg *config.Config) (refresh.Provider, error) {
	if f.schemaFile != "" {
		return &refresh.FileProvider{Path: f.schemaFile}, nil
	}
	if cfg.Service.Endpoint == "" {
		return nil, fmt.Errorf("no schema source: set service.endpoint in %s or pass -schema.endpoint / -schema.file", config.DefaultFile)
	}
	inner := &refresh.HTTPProvider{Endpoint: cfg.Service.Endpoint}
	if f.noCache {
		return inner, nil
	}
	cache, err := schemacache.Open("gqlproject")
	if err != nil {
		log.Printf("schema cache unavailable: %v", err)
		return inner, nil
	}
	return &refresh.CachedProvider{Inner: inner, Origin: cfg.Service.Endpoint, Cache: cache}, nil
}

// engineClient builds the stats client, or nil with stats disabled when the
// engine is unconfigured or credentials are missing.
func engineClient(cfg *config.Config) *engine.Client {
	if cfg.Engine.Endpoint == "" {
		return nil
	}
	client, err := engine.NewClient(cfg.Engine.Endpoint, os.Getenv(cfg.Engine.KeyEnv))
	if err != nil {
		if errors.Is(err, engine.ErrMissingCredentials) {
			log.Printf("warning: %s not set, field stats disabled for this session", cfg.Engine.KeyEnv)
			return nil
		}
		log.Printf("warning: engine client unavailable: %v", err)
		return nil
	}
	return client
}

var (
	errLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
	infoLabel = color.New(color.FgCyan).SprintFunc()
	okLabel   = color.New(color.FgGreen).SprintFunc()
)

func printBatch(b validate.Batch) {
	for _, is := range b.Issues {
		fmt.Printf("%s %s:%d:%d %s\n", errLabel("error"), b.URI, is.Line, is.Column, is.Message)
	}
}

func printDecorations(decs []annotate.Decoration) {
	for _, d := range decs {
		fmt.Printf("%s %s:%d:%d %s\n", infoLabel("stats"), d.URI, d.Line, d.Column, d.Message)
	}
}

func cmdCheck(args []string) error {
	var pf projectFlags
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	pf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, checkUsage)
		return err
	}
	cfg, err := pf.loadConfig()
	if err != nil {
		return err
	}
	provider, err := pf.provider(cfg)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(pf.otelEndpoint, pf.otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	matcher := docset.NewMatcher(cfg.Includes, cfg.Excludes)
	set, err := docset.Scan(pf.rootDir, matcher)
	if err != nil {
		return fmt.Errorf("scan %s: %w", pf.rootDir, err)
	}

	issues := 0
	proj := project.New(set, provider,
		project.WithDiagnosticsSink(func(b validate.Batch) {
			issues += len(b.Issues)
			printBatch(b)
		}),
		project.WithDecorationsSink(printDecorations),
		project.WithSchemaTagsSink(func(serviceID string, tags []string) {
			log.Printf("service %s schema tags: %v", serviceID, tags)
		}),
	)

	ctx := context.Background()
	if err := proj.Refresh(ctx, cfg.Service.Tag); err != nil {
		return err
	}
	if client := engineClient(cfg); client != nil {
		if err := proj.LoadStats(ctx, client, cfg.Service.Name); err != nil {
			log.Printf("load field stats: %v", err)
		}
	}

	if issues > 0 {
		return fmt.Errorf("%d validation %s in %d files", issues, plural(issues, "error", "errors"), set.Len())
	}
	fmt.Printf("%s %d files validated\n", okLabel("ok"), set.Len())
	return nil
}

func cmdWatch(args []string) error {
	var pf projectFlags
	statsInterval := 5 * time.Minute
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	pf.register(fs)
	fs.DurationVar(&statsInterval, "stats.interval", statsInterval, "Field stats poll interval")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, watchUsage)
		return err
	}
	cfg, err := pf.loadConfig()
	if err != nil {
		return err
	}
	provider, err := pf.provider(cfg)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(pf.otelEndpoint, pf.otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	matcher := docset.NewMatcher(cfg.Includes, cfg.Excludes)
	set, err := docset.Scan(pf.rootDir, matcher)
	if err != nil {
		return fmt.Errorf("scan %s: %w", pf.rootDir, err)
	}

	proj := project.New(set, provider,
		project.WithDiagnosticsSink(printBatch),
		project.WithDecorationsSink(printDecorations),
		project.WithSchemaTagsSink(func(serviceID string, tags []string) {
			log.Printf("service %s schema tags: %v", serviceID, tags)
		}),
	)
	client := engineClient(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Initial schema refresh and stats load run concurrently; annotation
	// re-runs when either completes.
	init, initCtx := errgroup.WithContext(ctx)
	init.Go(func() error { return proj.Refresh(initCtx, cfg.Service.Tag) })
	if client != nil {
		init.Go(func() error {
			if err := proj.LoadStats(initCtx, client, cfg.Service.Name); err != nil {
				log.Printf("load field stats: %v", err)
			}
			return nil
		})
	}
	if err := init.Wait(); err != nil {
		return err
	}

	watcher, err := docset.NewWatcher(pf.rootDir, matcher)
	if err != nil {
		return fmt.Errorf("watch %s: %w", pf.rootDir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(ctx, func(op docset.Op, rel string) {
			proj.ApplyChange(ctx, pf.rootDir, op, rel)
		})
	})
	if client != nil && statsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := proj.LoadStats(ctx, client, cfg.Service.Name); err != nil {
						log.Printf("load field stats: %v", err)
					}
				}
			}
		})
	}

	log.Printf("watching %s (%d files)", pf.rootDir, set.Len())
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func cmdPrintSchema(args []string) error {
	var pf projectFlags
	outFile := ""
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	pf.register(fs)
	fs.StringVar(&outFile, "out", outFile, "Write merged SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return err
	}
	cfg, err := pf.loadConfig()
	if err != nil {
		return err
	}
	provider, err := pf.provider(cfg)
	if err != nil {
		return err
	}

	matcher := docset.NewMatcher(cfg.Includes, cfg.Excludes)
	set, err := docset.Scan(pf.rootDir, matcher)
	if err != nil {
		return fmt.Errorf("scan %s: %w", pf.rootDir, err)
	}

	tag := cfg.Service.Tag
	if tag == "" {
		tag = refresh.DefaultTag
	}
	ctrl := refresh.NewController(provider, set.ExtensionSources)
	snap, err := ctrl.Refresh(context.Background(), tag)
	if err != nil {
		return err
	}
	if snap.MergeErr != nil {
		log.Printf("client extensions not merged: %v", snap.MergeErr)
	}
	sdl := language.PrintSchema(snap.Schema)
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
