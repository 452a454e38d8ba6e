// Package internal wires the import pipeline together: validate, parse,
// resolve, convert, project, report.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/scrivex/internal/catalog"
	"github.com/starford/scrivex/internal/checksum"
	"github.com/starford/scrivex/internal/codex"
	"github.com/starford/scrivex/internal/models"
	"github.com/starford/scrivex/internal/progress"
	"github.com/starford/scrivex/internal/rtf"
	"github.com/starford/scrivex/internal/scrivx"
	"github.com/starford/scrivex/internal/watch"
)

// convertWorkers bounds the RTF conversion fan-out. Conversion of each
// content node is independent; output ordering is fixed later by the
// single-threaded projection walk.
const convertWorkers = 4

const totalPhases = 5

// Run executes an import with the given options. It returns an error
// only for structural failures; per-file problems are collected and
// reported in the result summary.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.source == "" {
		return fmt.Errorf("source .scriv path is required")
	}
	if app.reporter == nil {
		app.reporter = progress.NewHuman(app.out)
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.errOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	source, err := filepath.Abs(app.source)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}
	app.source = source

	if err := scrivx.ValidatePackage(source); err != nil {
		app.reporter.Error(err.Error())
		return err
	}

	logger.Info("configuration loaded",
		slog.String("source", source),
		slog.String("settings", cfg.String()),
		slog.Bool("dry_run", app.dryRun))

	if _, err := app.runOnce(ctx, logger); err != nil {
		app.reporter.Error(err.Error())
		return err
	}

	if cfg.Watch.Enabled && !app.dryRun {
		debounce := time.Duration(cfg.Watch.DebounceSeconds) * time.Second
		return watch.Run(ctx, source, debounce, logger, func(ctx context.Context) error {
			_, err := app.runOnce(ctx, logger)
			return err
		})
	}

	return nil
}

// runOnce performs one full projection of the source package.
func (a *application) runOnce(ctx context.Context, logger *slog.Logger) (models.WriteResult, error) {
	cfg := a.config
	started := time.Now()

	a.reporter.Phase("Parsing Scrivener project...", 1, totalPhases)
	parser, err := scrivx.NewParser(a.source)
	if err != nil {
		return models.WriteResult{}, err
	}
	project, err := parser.Parse()
	if err != nil {
		return models.WriteResult{}, err
	}

	a.reporter.Phase("Resolving metadata...", 2, totalPhases)
	scrivx.ResolveMetadata(project)

	total := project.CountText()
	logger.Info("parsed project",
		slog.String("title", project.Meta.Title),
		slog.Int("text_documents", total))

	a.reporter.Phase(fmt.Sprintf("Converting %d RTF documents...", total), 3, totalPhases)
	if err := a.convertAll(ctx, project, logger); err != nil {
		return models.WriteResult{}, err
	}

	a.reporter.Phase("Writing output files...", 4, totalPhases)
	format, err := codex.ParseFormat(cfg.Import.Format)
	if err != nil {
		return models.WriteResult{}, err
	}

	outputDir := a.output
	if outputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return models.WriteResult{}, fmt.Errorf("resolve output dir: %w", err)
		}
		outputDir = filepath.Join(cwd, project.Meta.Title)
	}

	writer := codex.NewWriter(codex.WriterOptions{
		OutputDir:  outputDir,
		Format:     format,
		DryRun:     a.dryRun,
		IndexDepth: cfg.Import.IndexDepth,
		Types:      codex.TypeSetsFromLists(cfg.Import.Containers, cfg.Import.Content),
		Logger:     logger,
	})

	var result models.WriteResult
	mode := "nested"
	if cfg.Import.Flat {
		mode = "flat"
		result = writer.WriteFlat(project, cfg.Import.GenerateIndex)
	} else {
		result = writer.WriteNested(project)
	}

	a.reporter.Phase("Finalizing...", 5, totalPhases)
	if cfg.Catalog.Path != "" && !a.dryRun {
		if err := recordRun(cfg.Catalog.Path, a.source, outputDir, cfg.Import.Format, mode, started, result); err != nil {
			logger.Warn("catalog record failed", slog.String("error", err.Error()))
		}
	}

	a.report(outputDir, mode, result)
	return result, nil
}

// convertAll fills ConvertedBody for every Text node carrying content.
// Each node is touched by exactly one worker and conversion never fails
// outward, so no result collection is needed.
func (a *application) convertAll(ctx context.Context, project *models.Project, logger *slog.Logger) error {
	method, err := rtf.ParseMethod(a.config.RTF.Method)
	if err != nil {
		return err
	}
	conv := rtf.NewConverter(method, rtf.Options{
		Timeout: time.Duration(a.config.RTF.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})

	var nodes []*models.BinderNode
	project.WalkText(func(n *models.BinderNode) {
		if n.HasContent() {
			nodes = append(nodes, n)
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(convertWorkers)
	for _, n := range nodes {
		g.Go(func() error {
			n.ConvertedBody = conv.Convert(ctx, n.ContentPath)
			return nil
		})
	}
	return g.Wait()
}

// recordRun stores the run and its written files in the catalog. File
// checksums are computed from what actually landed on disk.
func recordRun(dbPath, source, outputDir, format, mode string, started time.Time, result models.WriteResult) error {
	db, err := catalog.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	files := make([]catalog.File, 0, len(result.Paths))
	for _, rel := range result.Paths {
		f := catalog.File{Path: rel}
		if data, readErr := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(rel))); readErr == nil {
			f.Checksum = checksum.Sum(data)
		}
		files = append(files, f)
	}

	_, err = db.RecordRun(catalog.Run{
		Source:       source,
		Output:       outputDir,
		Format:       format,
		Mode:         mode,
		FilesWritten: result.FilesWritten,
		DirsCreated:  result.DirectoriesCreated,
		ErrorCount:   len(result.Errors),
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}, files)
	return err
}

// report prints the final outcome: a JSON record for programmatic
// consumers, a human summary otherwise.
func (a *application) report(outputDir, mode string, result models.WriteResult) {
	if a.jsonOut {
		if a.dryRun {
			a.reporter.Result(map[string]any{
				"type":      "preview",
				"outputDir": outputDir,
				"format":    a.config.Import.Format,
				"mode":      mode,
				"files":     result.Paths,
				"fileCount": len(result.Paths),
			})
			return
		}
		a.reporter.Result(map[string]any{
			"type":           "result",
			"success":        len(result.Errors) == 0,
			"outputDir":      outputDir,
			"filesGenerated": result.FilesWritten,
			"format":         a.config.Import.Format,
			"errors":         result.Errors,
		})
		return
	}

	if a.dryRun {
		fmt.Fprintf(a.out, "\n=== DRY RUN - no files will be written ===\n\n")
		fmt.Fprintf(a.out, "Output directory: %s\nFormat: %s\nMode: %s\n\nFiles that would be created:\n", outputDir, a.config.Import.Format, mode)
		for _, p := range result.Paths {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
		fmt.Fprintf(a.out, "\nTotal: %d files\n", len(result.Paths))
		return
	}

	fmt.Fprintf(a.out, "\nScrivener project imported.\n")
	fmt.Fprintf(a.out, "   Output: %s\n   Files: %d\n   Directories: %d\n   Format: %s\n", outputDir, result.FilesWritten, result.DirectoriesCreated, a.config.Import.Format)
	if len(result.Errors) > 0 {
		fmt.Fprintf(a.out, "   Errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(a.out, "     - %s\n", e)
		}
	}
}
