package codex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/scrivex/internal/models"
)

// IndexFileName is the name of every owned index document.
const IndexFileName = "index.codex.yaml"

// CacheIndexFileName is the hidden cache index emitted by flat mode.
const CacheIndexFileName = ".index.codex.yaml"

// WriterOptions configures a projection run.
type WriterOptions struct {
	OutputDir  string
	Format     Format
	DryRun     bool
	IndexDepth int
	Types      TypeSets
	Logger     *slog.Logger

	// Now is injectable for deterministic document timestamps.
	Now func() time.Time
}

// Writer projects a binder tree onto the output directory. A Writer is
// single-use: counters and the planned path list accumulate over one run.
type Writer struct {
	outputDir  string
	format     Format
	dryRun     bool
	indexDepth int
	types      TypeSets
	renderer   *Renderer
	now        func() time.Time
	logger     *slog.Logger

	filesWritten int
	dirsCreated  int
	errors       []string
	paths        []string
}

// NewWriter builds a Writer from options, filling defaults.
func NewWriter(opts WriterOptions) *Writer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Types.Containers == nil && opts.Types.Content == nil {
		opts.Types = DefaultTypeSets()
	}
	return &Writer{
		outputDir:  opts.OutputDir,
		format:     opts.Format,
		dryRun:     opts.DryRun,
		indexDepth: opts.IndexDepth,
		types:      opts.Types,
		renderer:   NewRenderer(opts.Format, opts.Now),
		now:        opts.Now,
		logger:     opts.Logger,
	}
}

// inert nodes produce no output and are skipped wherever they appear.
func inert(n *models.BinderNode) bool {
	switch n.Kind {
	case models.KindRoot, models.KindTrash, models.KindTrashFolder, models.KindResearchFolder:
		return true
	}
	return false
}

// manuscriptItems filters the top-level forest down to items that belong
// in the projected manuscript. Template folders are a Scrivener artifact.
func manuscriptItems(items []*models.BinderNode) []*models.BinderNode {
	var out []*models.BinderNode
	for _, it := range items {
		if inert(it) || strings.HasPrefix(strings.ToLower(it.Title), "template") {
			continue
		}
		out = append(out, it)
	}
	return out
}

// WriteNested projects the tree with the nested index structure: content
// files are written on the way down, index documents own or inline their
// children depending on the index depth limit, and the master index is written
// last at the output root.
func (w *Writer) WriteNested(p *models.Project) models.WriteResult {
	w.ensureDir(w.outputDir)

	items := manuscriptItems(p.Items)
	w.writeNestedItems(items, w.outputDir, 0)
	w.writeMasterIndex(p, items)

	return w.result()
}

func (w *Writer) writeNestedItems(items []*models.BinderNode, dir string, depth int) {
	for _, item := range items {
		if inert(item) {
			continue
		}
		slug := Slugify(item.Title)

		switch {
		case w.types.IsContainer(item):
			sub := filepath.Join(dir, slug)
			w.ensureDir(sub)

			// Containers above the depth limit own their index document,
			// deeper ones are inlined into the nearest owning ancestor.
			if depth < w.indexDepth {
				w.writeOwnedIndex(item, sub, depth+1)
			}
			if len(item.Children) > 0 {
				w.writeNestedItems(item.Children, sub, depth+1)
			}

		case w.types.IsContent(item):
			w.writeDocument(item, dir)

			// A document's sub-documents stay in the same directory at the
			// same depth; content nodes never open a subdirectory.
			if len(item.Children) > 0 {
				w.writeNestedItems(item.Children, dir, depth)
			}
		}
	}
}

// indexMeta heads every index document.
type indexMeta struct {
	FormatVersion string `yaml:"formatVersion"`
	Generator     string `yaml:"generator"`
	Source        string `yaml:"source,omitempty"`
}

// patternBlock is the include/exclude glob block on owned indexes.
type patternBlock struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

func defaultPatterns() *patternBlock {
	return &patternBlock{
		Include: []string{"**/*.md"},
		Exclude: []string{"_drafts/**"},
	}
}

// childEntry is one element of an index children array: either an include
// pointer or a fully inlined child object.
type childEntry struct {
	Include string `yaml:"include,omitempty"`

	ID       string       `yaml:"id,omitempty"`
	Type     Type         `yaml:"type,omitempty"`
	Name     string       `yaml:"name,omitempty"`
	Summary  string       `yaml:"summary,omitempty"`
	Label    string       `yaml:"scrivener_label,omitempty"`
	Children []childEntry `yaml:"children,omitempty"`
}

// indexDoc is an owned index document.
type indexDoc struct {
	Metadata indexMeta     `yaml:"metadata"`
	ID       string        `yaml:"id"`
	Type     Type          `yaml:"type"`
	Name     string        `yaml:"name"`
	Patterns *patternBlock `yaml:"patterns,omitempty"`
	Children []childEntry  `yaml:"children"`
	Summary  string        `yaml:"summary,omitempty"`
	Label    string        `yaml:"scrivener_label,omitempty"`
	Status   string        `yaml:"scrivener_status,omitempty"`
	Author   string        `yaml:"author,omitempty"`
}

// writeOwnedIndex writes the index document a container owns. depth is
// the traversal depth of the container's children.
func (w *Writer) writeOwnedIndex(container *models.BinderNode, dir string, depth int) {
	doc := indexDoc{
		Metadata: indexMeta{FormatVersion: FormatVersion, Generator: Generator},
		ID:       container.ID,
		Type:     Classify(container),
		Name:     container.Title,
		Patterns: defaultPatterns(),
		Children: w.buildChildren(container.Children, depth),
		Summary:  container.Synopsis,
		Label:    container.Label,
		Status:   container.Status,
	}
	w.writeIndex(filepath.Join(dir, IndexFileName), doc)
}

// buildChildren assembles the ordered children array for an index whose
// direct children sit at the given traversal depth.
func (w *Writer) buildChildren(items []*models.BinderNode, depth int) []childEntry {
	var children []childEntry

	for _, item := range items {
		if inert(item) {
			continue
		}
		slug := Slugify(item.Title)

		switch {
		case w.types.IsContainer(item):
			if depth < w.indexDepth {
				children = append(children, childEntry{
					Include: "./" + slug + "/" + IndexFileName,
				})
				continue
			}
			entry := childEntry{
				ID:      item.ID,
				Type:    Classify(item),
				Name:    item.Title,
				Summary: item.Synopsis,
				Label:   item.Label,
			}
			if len(item.Children) > 0 {
				entry.Children = w.buildChildren(item.Children, depth+1)
			}
			children = append(children, entry)

		case w.types.IsContent(item):
			children = append(children, childEntry{
				Include: "./" + slug + w.format.Ext(),
			})
			// Sub-documents of a content node surface as siblings, the
			// same way they share the content node's directory on disk.
			if len(item.Children) > 0 {
				children = append(children, w.buildChildren(item.Children, depth)...)
			}
		}
	}

	return children
}

// writeMasterIndex writes the root index document summarizing the
// top-level items. Always written, and written last.
func (w *Writer) writeMasterIndex(p *models.Project, items []*models.BinderNode) {
	id := p.Meta.Identifier
	if id == "" {
		id = "project-root"
	}
	doc := indexDoc{
		Metadata: indexMeta{
			FormatVersion: FormatVersion,
			Generator:     Generator,
			Source:        p.Meta.Title + ".scriv",
		},
		ID:       id,
		Type:     "index",
		Name:     p.Meta.Title,
		Patterns: defaultPatterns(),
		Children: w.buildChildren(items, 0),
		Author:   p.Meta.Author,
	}
	w.writeIndex(filepath.Join(w.outputDir, IndexFileName), doc)
}

// WriteFlat projects the tree in the legacy flat layout: every folder is
// a plain directory, every Text node a file, and the root gets one
// boilerplate index plus one generated cache index enumerating the tree.
// The index depth limit does not apply.
func (w *Writer) WriteFlat(p *models.Project, generateIndex bool) models.WriteResult {
	w.ensureDir(w.outputDir)
	w.writeFlatItems(p.Items, w.outputDir)

	if generateIndex {
		w.writeFlatRootIndex(p)
		w.writeCacheIndex(p)
	}

	return w.result()
}

func (w *Writer) writeFlatItems(items []*models.BinderNode, dir string) {
	for _, item := range items {
		if item.Kind == models.KindTrash || item.Kind == models.KindRoot {
			continue
		}
		slug := Slugify(item.Title)

		switch item.Kind {
		case models.KindFolder, models.KindDraftFolder:
			sub := filepath.Join(dir, slug)
			w.ensureDir(sub)
			if len(item.Children) > 0 {
				w.writeFlatItems(item.Children, sub)
			}
		case models.KindText:
			w.writeDocument(item, dir)
			if len(item.Children) > 0 {
				w.writeFlatItems(item.Children, dir)
			}
		}
	}
}

// flatRootDoc is the boilerplate root index of flat mode.
type flatRootDoc struct {
	Metadata   flatRootMeta `yaml:"metadata"`
	ID         string       `yaml:"id"`
	Type       string       `yaml:"type"`
	Name       string       `yaml:"name"`
	Summary    string       `yaml:"summary"`
	Attributes []Attribute  `yaml:"attributes"`
}

type flatRootMeta struct {
	FormatVersion string `yaml:"formatVersion"`
	Created       string `yaml:"created"`
	Source        string `yaml:"source"`
}

func (w *Writer) writeFlatRootIndex(p *models.Project) {
	doc := flatRootDoc{
		Metadata: flatRootMeta{
			FormatVersion: FormatVersion,
			Created:       w.now().Format(time.RFC3339),
			Source:        "scrivener-import",
		},
		ID:      "index-root",
		Type:    "project",
		Name:    p.Meta.Title,
		Summary: "Imported from Scrivener: " + p.Meta.Title,
		Attributes: []Attribute{
			{Key: "scrivener_identifier", Value: p.Meta.Identifier},
			{Key: "scrivener_version", Value: p.Meta.Version},
			{Key: "scrivener_creator", Value: p.Meta.Creator},
		},
	}
	w.writeIndex(filepath.Join(w.outputDir, IndexFileName), doc)
}

// cacheDoc is the generated hidden cache index of flat mode.
type cacheDoc struct {
	Metadata cacheMeta    `yaml:"metadata"`
	ID       string       `yaml:"id"`
	Type     string       `yaml:"type"`
	Name     string       `yaml:"name"`
	Children []cacheChild `yaml:"children"`
}

type cacheMeta struct {
	FormatVersion string `yaml:"formatVersion"`
	Generated     bool   `yaml:"generated"`
	GeneratedAt   string `yaml:"generatedAt"`
	Source        string `yaml:"source"`
}

type cacheChild struct {
	ID       string       `yaml:"id"`
	Type     Type         `yaml:"type"`
	Name     string       `yaml:"name"`
	Filename string       `yaml:"_filename,omitempty"`
	Children []cacheChild `yaml:"children,omitempty"`
}

func (w *Writer) writeCacheIndex(p *models.Project) {
	doc := cacheDoc{
		Metadata: cacheMeta{
			FormatVersion: "2.1",
			Generated:     true,
			GeneratedAt:   w.now().Format(time.RFC3339),
			Source:        "scrivener-import",
		},
		ID:       "index-root",
		Type:     "index",
		Name:     p.Meta.Title,
		Children: w.buildCacheChildren(p.Items),
	}
	w.writeIndex(filepath.Join(w.outputDir, CacheIndexFileName), doc)
}

func (w *Writer) buildCacheChildren(items []*models.BinderNode) []cacheChild {
	var children []cacheChild

	for _, item := range items {
		if item.Kind == models.KindTrash || item.Kind == models.KindRoot {
			continue
		}
		slug := Slugify(item.Title)

		switch item.Kind {
		case models.KindFolder, models.KindDraftFolder:
			child := cacheChild{
				ID:   "folder-" + slug,
				Type: TypeFolder,
				Name: item.Title,
			}
			if len(item.Children) > 0 {
				child.Children = w.buildCacheChildren(item.Children)
			}
			children = append(children, child)
		case models.KindText:
			children = append(children, cacheChild{
				ID:       "file-" + slug,
				Type:     Classify(item),
				Name:     item.Title,
				Filename: slug + w.format.Ext(),
			})
			if len(item.Children) > 0 {
				children = append(children, w.buildCacheChildren(item.Children)...)
			}
		}
	}

	return children
}

// writeDocument renders and writes exactly one content file into dir.
func (w *Writer) writeDocument(item *models.BinderNode, dir string) {
	path := filepath.Join(dir, Slugify(item.Title)+w.format.Ext())

	data, err := w.renderer.Render(item)
	if err != nil {
		w.errors = append(w.errors, fmt.Sprintf("%s: %v", path, err))
		w.logger.Error("render failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.writeFile(path, data)
}

// writeIndex marshals and writes an index document.
func (w *Writer) writeIndex(path string, doc any) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		w.errors = append(w.errors, fmt.Sprintf("%s: %v", path, err))
		return
	}
	w.writeFile(path, data)
}

// writeFile records the planned path and, outside dry-run, atomically
// writes content (tmp file → fsync → rename), overwriting any previous
// file at the same path.
func (w *Writer) writeFile(path string, content []byte) {
	rel, err := filepath.Rel(w.outputDir, path)
	if err != nil {
		rel = path
	}

	if !w.dryRun {
		if err := atomicWrite(path, content); err != nil {
			w.errors = append(w.errors, fmt.Sprintf("%s: %v", path, err))
			w.logger.Error("write failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
	}

	w.filesWritten++
	w.paths = append(w.paths, filepath.ToSlash(rel))
	w.logger.Debug("wrote", slog.String("path", rel), slog.Bool("dry_run", w.dryRun))
}

func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".scrivex-tmp-*")
	if err != nil {
		return fmt.Errorf("codex: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("codex: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("codex: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("codex: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("codex: rename: %w", err)
	}
	success = true
	return nil
}

// ensureDir creates dir if absent. Creation is idempotent; dry-run only
// counts it.
func (w *Writer) ensureDir(dir string) {
	if !w.dryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.errors = append(w.errors, fmt.Sprintf("%s: %v", dir, err))
			return
		}
	}
	w.dirsCreated++
}

func (w *Writer) result() models.WriteResult {
	return models.WriteResult{
		FilesWritten:       w.filesWritten,
		DirectoriesCreated: w.dirsCreated,
		Errors:             w.errors,
		Paths:              w.paths,
	}
}
