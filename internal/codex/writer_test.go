package codex

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/scrivex/internal/models"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testProject(items ...*models.BinderNode) *models.Project {
	return &models.Project{
		Meta: models.ProjectMetadata{
			Identifier: "F00D-1234",
			Title:      "Novel",
			Author:     "A. Writer",
		},
		Items: items,
	}
}

// actOne builds the canonical two-level fixture: a draft folder holding a
// chapter and a scene.
func actOne() *models.BinderNode {
	return &models.BinderNode{
		ID:    "AAAA",
		Kind:  models.KindDraftFolder,
		Title: "Act One",
		Children: []*models.BinderNode{
			{ID: "BBBB", Kind: models.KindText, Title: "Chapter 1", Label: "Chapter", IncludeInCompile: true, ConvertedBody: "One."},
			{ID: "CCCC", Kind: models.KindText, Title: "Scene A", Label: "Scene", IncludeInCompile: true, ConvertedBody: "A."},
		},
	}
}

func newTestWriter(t *testing.T, opts WriterOptions) (*Writer, string) {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(t.TempDir(), "out")
	}
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}
	opts.Logger = testLogger
	opts.Now = fixedNow
	return NewWriter(opts), opts.OutputDir
}

func readYAML(t *testing.T, path string, into any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		t.Fatalf("unmarshal %s: %v", path, err)
	}
}

func TestWriteNestedDepthOne(t *testing.T) {
	w, out := newTestWriter(t, WriterOptions{IndexDepth: 1})
	result := w.WriteNested(testProject(actOne()))

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	wantPaths := []string{
		"act-one/index.codex.yaml",
		"act-one/chapter-1.md",
		"act-one/scene-a.md",
		"index.codex.yaml",
	}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Errorf("paths = %v, want %v", result.Paths, wantPaths)
	}
	if result.FilesWritten != 4 {
		t.Errorf("files written = %d, want 4", result.FilesWritten)
	}
	if result.DirectoriesCreated != 2 {
		t.Errorf("directories created = %d, want 2", result.DirectoriesCreated)
	}

	var owned indexDoc
	readYAML(t, filepath.Join(out, "act-one", IndexFileName), &owned)
	if owned.Metadata.FormatVersion != FormatVersion || owned.Metadata.Generator != Generator {
		t.Errorf("owned index metadata = %+v", owned.Metadata)
	}
	if owned.ID != "AAAA" || owned.Type != TypeAct || owned.Name != "Act One" {
		t.Errorf("owned index header = %+v", owned)
	}
	if owned.Patterns == nil || owned.Patterns.Include[0] != "**/*.md" || owned.Patterns.Exclude[0] != "_drafts/**" {
		t.Errorf("owned index patterns = %+v", owned.Patterns)
	}
	wantChildren := []childEntry{
		{Include: "./chapter-1.md"},
		{Include: "./scene-a.md"},
	}
	if !reflect.DeepEqual(owned.Children, wantChildren) {
		t.Errorf("owned index children = %+v, want %+v", owned.Children, wantChildren)
	}

	var master indexDoc
	readYAML(t, filepath.Join(out, IndexFileName), &master)
	if master.ID != "F00D-1234" || master.Type != "index" || master.Name != "Novel" {
		t.Errorf("master index header = %+v", master)
	}
	if master.Metadata.Source != "Novel.scriv" {
		t.Errorf("master index source = %q", master.Metadata.Source)
	}
	if master.Author != "A. Writer" {
		t.Errorf("master index author = %q", master.Author)
	}
	wantMaster := []childEntry{{Include: "./act-one/index.codex.yaml"}}
	if !reflect.DeepEqual(master.Children, wantMaster) {
		t.Errorf("master index children = %+v, want %+v", master.Children, wantMaster)
	}
}

func TestWriteNestedDepthZeroInlinesContainers(t *testing.T) {
	w, out := newTestWriter(t, WriterOptions{IndexDepth: 0})
	result := w.WriteNested(testProject(actOne()))

	wantPaths := []string{
		"act-one/chapter-1.md",
		"act-one/scene-a.md",
		"index.codex.yaml",
	}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Errorf("paths = %v, want %v", result.Paths, wantPaths)
	}

	var master indexDoc
	readYAML(t, filepath.Join(out, IndexFileName), &master)
	if len(master.Children) != 1 {
		t.Fatalf("master children = %+v", master.Children)
	}
	inlined := master.Children[0]
	if inlined.Include != "" || inlined.ID != "AAAA" || inlined.Name != "Act One" || inlined.Type != TypeAct {
		t.Errorf("inlined container = %+v", inlined)
	}
	wantGrand := []childEntry{
		{Include: "./chapter-1.md"},
		{Include: "./scene-a.md"},
	}
	if !reflect.DeepEqual(inlined.Children, wantGrand) {
		t.Errorf("inlined children = %+v, want %+v", inlined.Children, wantGrand)
	}
}

func TestWriteNestedDepthTwo(t *testing.T) {
	book := &models.BinderNode{
		ID:    "B1",
		Kind:  models.KindFolder,
		Title: "Book One",
		Children: []*models.BinderNode{
			actOne(),
		},
	}
	w, _ := newTestWriter(t, WriterOptions{IndexDepth: 2})
	result := w.WriteNested(testProject(book))

	wantPaths := []string{
		"book-one/index.codex.yaml",
		"book-one/act-one/index.codex.yaml",
		"book-one/act-one/chapter-1.md",
		"book-one/act-one/scene-a.md",
		"index.codex.yaml",
	}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Errorf("paths = %v, want %v", result.Paths, wantPaths)
	}
}

func TestWriteNestedContentChildrenShareDirectory(t *testing.T) {
	chapter := &models.BinderNode{
		ID: "BBBB", Kind: models.KindText, Title: "Chapter 1", IncludeInCompile: true,
		Children: []*models.BinderNode{
			{ID: "CCCC", Kind: models.KindText, Title: "Scene A", IncludeInCompile: true},
		},
	}
	root := &models.BinderNode{ID: "AAAA", Kind: models.KindDraftFolder, Title: "Draft", Children: []*models.BinderNode{chapter}}

	w, out := newTestWriter(t, WriterOptions{IndexDepth: 1})
	result := w.WriteNested(testProject(root))

	wantPaths := []string{
		"draft/index.codex.yaml",
		"draft/chapter-1.md",
		"draft/scene-a.md",
		"index.codex.yaml",
	}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Errorf("paths = %v, want %v", result.Paths, wantPaths)
	}

	// The sub-document surfaces as a sibling entry in the owning index.
	var owned indexDoc
	readYAML(t, filepath.Join(out, "draft", IndexFileName), &owned)
	wantChildren := []childEntry{
		{Include: "./chapter-1.md"},
		{Include: "./scene-a.md"},
	}
	if !reflect.DeepEqual(owned.Children, wantChildren) {
		t.Errorf("owned index children = %+v, want %+v", owned.Children, wantChildren)
	}
}

func TestWriteNestedSkipsInertAndTemplates(t *testing.T) {
	w, _ := newTestWriter(t, WriterOptions{IndexDepth: 1})
	result := w.WriteNested(testProject(
		actOne(),
		&models.BinderNode{ID: "R", Kind: models.KindResearchFolder, Title: "Research",
			Children: []*models.BinderNode{{ID: "N", Kind: models.KindText, Title: "Notes"}}},
		&models.BinderNode{ID: "T", Kind: models.KindTrashFolder, Title: "Trash"},
		&models.BinderNode{ID: "TT", Kind: models.KindFolder, Title: "Template Sheets"},
	))

	for _, p := range result.Paths {
		switch {
		case p == "index.codex.yaml":
		case filepath.Dir(p) == "act-one":
		default:
			t.Errorf("unexpected output path %s", p)
		}
	}
	if result.FilesWritten != 4 {
		t.Errorf("files written = %d, want 4", result.FilesWritten)
	}
}

func TestWriteNestedDryRunParity(t *testing.T) {
	p := testProject(actOne())

	real, out := newTestWriter(t, WriterOptions{IndexDepth: 1})
	realResult := real.WriteNested(p)

	dryDir := filepath.Join(t.TempDir(), "dry")
	dry, _ := newTestWriter(t, WriterOptions{IndexDepth: 1, DryRun: true, OutputDir: dryDir})
	dryResult := dry.WriteNested(p)

	if !reflect.DeepEqual(dryResult.Paths, realResult.Paths) {
		t.Errorf("dry-run paths %v != real paths %v", dryResult.Paths, realResult.Paths)
	}
	if dryResult.FilesWritten != realResult.FilesWritten {
		t.Errorf("dry-run files %d != real files %d", dryResult.FilesWritten, realResult.FilesWritten)
	}

	if _, err := os.Stat(dryDir); !os.IsNotExist(err) {
		t.Error("dry run should not create the output directory")
	}
	for _, rel := range realResult.Paths {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(rel))); err != nil {
			t.Errorf("real run missing %s: %v", rel, err)
		}
	}
}

func TestWriteNestedSlugCollisionLastWins(t *testing.T) {
	p := testProject(
		&models.BinderNode{ID: "1", Kind: models.KindText, Title: "Scene: One", IncludeInCompile: true, ConvertedBody: "first"},
		&models.BinderNode{ID: "2", Kind: models.KindText, Title: "Scene_One", IncludeInCompile: true, ConvertedBody: "second"},
	)

	w, out := newTestWriter(t, WriterOptions{IndexDepth: 1})
	result := w.WriteNested(p)

	// Both writes count even though they land on the same path.
	if result.FilesWritten != 3 {
		t.Errorf("files written = %d, want 3", result.FilesWritten)
	}
	if result.Paths[0] != "scene-one.md" || result.Paths[1] != "scene-one.md" {
		t.Errorf("paths = %v", result.Paths)
	}

	data, err := os.ReadFile(filepath.Join(out, "scene-one.md"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); !strings.Contains(got, "second") || strings.Contains(got, "first") {
		t.Errorf("collision should leave the later document on disk:\n%s", got)
	}
}

func TestWriteFlat(t *testing.T) {
	p := testProject(
		&models.BinderNode{
			ID: "AAAA", Kind: models.KindDraftFolder, Title: "Draft",
			Children: []*models.BinderNode{
				{ID: "BBBB", Kind: models.KindText, Title: "Chapter 1", IncludeInCompile: true, ConvertedBody: "One."},
			},
		},
		&models.BinderNode{ID: "T", Kind: models.KindTrash, Title: "Trash"},
	)

	w, out := newTestWriter(t, WriterOptions{})
	result := w.WriteFlat(p, true)

	wantPaths := []string{
		"draft/chapter-1.md",
		"index.codex.yaml",
		".index.codex.yaml",
	}
	if !reflect.DeepEqual(result.Paths, wantPaths) {
		t.Errorf("paths = %v, want %v", result.Paths, wantPaths)
	}

	var root flatRootDoc
	readYAML(t, filepath.Join(out, IndexFileName), &root)
	if root.ID != "index-root" || root.Type != "project" || root.Name != "Novel" {
		t.Errorf("flat root index = %+v", root)
	}
	if root.Summary != "Imported from Scrivener: Novel" {
		t.Errorf("flat root summary = %q", root.Summary)
	}

	var cache cacheDoc
	readYAML(t, filepath.Join(out, CacheIndexFileName), &cache)
	if cache.Metadata.FormatVersion != "2.1" || !cache.Metadata.Generated {
		t.Errorf("cache metadata = %+v", cache.Metadata)
	}
	if len(cache.Children) != 1 || cache.Children[0].ID != "folder-draft" {
		t.Fatalf("cache children = %+v", cache.Children)
	}
	file := cache.Children[0].Children[0]
	if file.ID != "file-chapter-1" || file.Filename != "chapter-1.md" {
		t.Errorf("cache file entry = %+v", file)
	}
}

func TestWriteFlatNoIndex(t *testing.T) {
	p := testProject(&models.BinderNode{ID: "B", Kind: models.KindText, Title: "Chapter 1", IncludeInCompile: true})

	w, out := newTestWriter(t, WriterOptions{})
	result := w.WriteFlat(p, false)

	if !reflect.DeepEqual(result.Paths, []string{"chapter-1.md"}) {
		t.Errorf("paths = %v", result.Paths)
	}
	if _, err := os.Stat(filepath.Join(out, IndexFileName)); !os.IsNotExist(err) {
		t.Error("flat mode without index should not write index.codex.yaml")
	}
}
