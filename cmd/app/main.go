package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scrivex/internal"
	"github.com/starford/scrivex/internal/mcpserver"
	"github.com/starford/scrivex/internal/progress"
	pkgconfig "github.com/starford/scrivex/pkg/config"
)

func splitTypes(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func buildConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	if path := cmd.String("config"); path != "" {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if cmd.IsSet("format") {
		cfg.Import.Format = cmd.String("format")
	}
	if cmd.IsSet("index-depth") {
		cfg.Import.IndexDepth = int(cmd.Int("index-depth"))
	}
	if cmd.IsSet("containers") {
		cfg.Import.Containers = splitTypes(cmd.String("containers"))
	}
	if cmd.IsSet("content") {
		cfg.Import.Content = splitTypes(cmd.String("content"))
	}
	if cmd.IsSet("rtf-method") {
		cfg.RTF.Method = cmd.String("rtf-method")
	}
	if cmd.IsSet("catalog") {
		cfg.Catalog.Path = cmd.String("catalog")
	}
	if cmd.Bool("flat") {
		cfg.Import.Flat = true
	}
	if cmd.Bool("no-index") {
		cfg.Import.GenerateIndex = false
	}
	if cmd.Bool("watch") {
		cfg.Watch.Enabled = true
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if cmd.Bool("quiet") {
		cfg.App.LogLevel = slog.LevelError
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	source := cmd.Args().First()
	if source == "" {
		return fmt.Errorf("usage: scrivex <path/to/Project.scriv> [flags]")
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	var reporter progress.Reporter
	switch {
	case cmd.Bool("quiet"):
		reporter = progress.Silent{}
	case cmd.Bool("json"):
		reporter = progress.NewJSON(os.Stdout)
	default:
		reporter = progress.NewHuman(os.Stdout)
	}

	return internal.Run(ctx,
		internal.WithConfig(cfg),
		internal.WithSource(source),
		internal.WithOutput(cmd.String("output")),
		internal.WithDryRun(cmd.Bool("dry-run")),
		internal.WithReporter(reporter, cmd.Bool("json")),
	)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	return mcpserver.New(cfg).ServeStdio()
}

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "none",
			Sources:     cli.EnvVars("SCRIVEX_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: markdown, yaml, or json",
			Value:   internal.FormatMarkdown,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: ./<ProjectName>)",
		},
		&cli.StringFlag{
			Name:  "rtf-method",
			Usage: "RTF conversion method: pandoc, library, or raw",
			Value: internal.RTFMethodLibrary,
		},
		&cli.IntFlag{
			Name:  "index-depth",
			Usage: "Levels that get their own index.codex.yaml (0=root only, 1=per-book, 2=per-act)",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "containers",
			Usage: "Comma-separated types treated as containers",
			Value: "act,part,book,folder",
		},
		&cli.StringFlag{
			Name:  "content",
			Usage: "Comma-separated types written as content files",
			Value: "chapter,scene,document",
		},
		&cli.StringFlag{
			Name:  "catalog",
			Usage: "Record the run in a SQLite catalog at this path",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"d"},
			Usage:   "Enumerate the files a run would create without writing anything",
		},
		&cli.BoolFlag{
			Name:  "flat",
			Usage: "Use the legacy flat layout instead of nested indexes",
		},
		&cli.BoolFlag{
			Name:  "no-index",
			Usage: "Skip index generation in flat mode",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "Keep running and re-import when the source package changes",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Emit progress and results as JSON lines",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Verbose logging",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Errors only",
		},
	}

	cmd := &cli.Command{
		Name:      "scrivex",
		Usage:     "Convert Scrivener projects to Codex content trees (Markdown, YAML, or JSON)",
		ArgsUsage: "<path/to/Project.scriv>",
		Action:    runImport,
		Flags:     flags,
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the importer over MCP on stdio",
				Action: runMCP,
				Flags:  flags,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
