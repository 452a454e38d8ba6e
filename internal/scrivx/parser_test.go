package scrivx

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/scrivex/internal/apperr"
	"github.com/starford/scrivex/internal/models"
	"github.com/starford/scrivex/internal/testutil"
)

func fixtureProject(t *testing.T) (*models.Project, string) {
	t.Helper()
	pkg := testutil.ScrivPackage(t, "Novel", testutil.FixtureScrivx, map[string]string{
		"BBBB": `{\rtf1\ansi Chapter body\par}`,
		"CCCC": `{\rtf1\ansi Scene body\par}`,
	})
	parser, err := NewParser(pkg)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	p, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p, pkg
}

func TestParse(t *testing.T) {
	p, pkg := fixtureProject(t)

	if p.Meta.Title != "Novel" {
		t.Errorf("title = %q, want Novel (derived from the package name)", p.Meta.Title)
	}
	if p.Meta.Identifier != "F00D-1234" || p.Meta.Author != "A. Writer" {
		t.Errorf("meta = %+v", p.Meta)
	}
	if p.ScrivPath != pkg {
		t.Errorf("scriv path = %q, want %q", p.ScrivPath, pkg)
	}
	if len(p.Meta.Labels) != 2 || len(p.Meta.Statuses) != 2 {
		t.Errorf("labels = %d statuses = %d, want 2 each", len(p.Meta.Labels), len(p.Meta.Statuses))
	}

	if len(p.Items) != 3 {
		t.Fatalf("top-level items = %d, want 3", len(p.Items))
	}

	draft := p.Items[0]
	if draft.Kind != models.KindDraftFolder || draft.Title != "Act One" {
		t.Errorf("first item = %+v", draft)
	}
	if len(draft.Children) != 1 {
		t.Fatalf("draft children = %d, want 1", len(draft.Children))
	}

	chapter := draft.Children[0]
	if chapter.Kind != models.KindText || chapter.Title != "Chapter 1" {
		t.Errorf("chapter = %+v", chapter)
	}
	if chapter.LabelID == nil || *chapter.LabelID != 1 {
		t.Errorf("chapter label id = %v, want 1", chapter.LabelID)
	}
	if chapter.Synopsis != "The beginning." {
		t.Errorf("chapter synopsis = %q", chapter.Synopsis)
	}
	if !chapter.IncludeInCompile {
		t.Error("chapter should be included in compile")
	}
	if !chapter.HasContent() {
		t.Error("chapter should have a content path")
	}
	if base := filepath.Base(chapter.ContentPath); base != "content.rtf" {
		t.Errorf("content path = %q", chapter.ContentPath)
	}

	scene := chapter.Children[0]
	if scene.Title != "Scene A" || scene.StatusID == nil || *scene.StatusID != 99 {
		t.Errorf("scene = %+v", scene)
	}
}

func TestParseDefaults(t *testing.T) {
	const scrivx = `<?xml version="1.0" encoding="UTF-8"?>
<ScrivenerProject Identifier="X">
    <Binder>
        <BinderItem UUID="AAAA">
            <MetaData>
                <IncludeInCompile>No</IncludeInCompile>
            </MetaData>
        </BinderItem>
    </Binder>
</ScrivenerProject>
`
	pkg := testutil.ScrivPackage(t, "Bare", scrivx, nil)
	parser, err := NewParser(pkg)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	p, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	item := p.Items[0]
	if item.Kind != models.KindText {
		t.Errorf("missing Type should default to Text, got %q", item.Kind)
	}
	if item.Title != "Untitled" {
		t.Errorf("missing Title should default to Untitled, got %q", item.Title)
	}
	if item.IncludeInCompile {
		t.Error("IncludeInCompile No should parse as false")
	}
	if item.HasContent() {
		t.Errorf("no content on disk, got path %q", item.ContentPath)
	}
}

func TestResolveMetadata(t *testing.T) {
	p, _ := fixtureProject(t)
	ResolveMetadata(p)

	chapter := p.Items[0].Children[0]
	if chapter.Label != "Chapter" {
		t.Errorf("chapter label = %q, want Chapter", chapter.Label)
	}
	if chapter.Status != "First Draft" {
		t.Errorf("chapter status = %q, want First Draft", chapter.Status)
	}

	// StatusID 99 has no definition; the name stays unresolved.
	scene := chapter.Children[0]
	if scene.Label != "Scene" {
		t.Errorf("scene label = %q, want Scene", scene.Label)
	}
	if scene.Status != "" {
		t.Errorf("scene status = %q, want unresolved", scene.Status)
	}
}

func TestNewParserNoDescriptor(t *testing.T) {
	_, err := NewParser(t.TempDir())
	if !errors.Is(err, apperr.ErrStructural) {
		t.Errorf("error = %v, want ErrStructural", err)
	}
}

func TestValidatePackage(t *testing.T) {
	good := testutil.ScrivPackage(t, "Novel", testutil.FixtureScrivx, nil)
	if err := ValidatePackage(good); err != nil {
		t.Errorf("valid package rejected: %v", err)
	}

	if err := ValidatePackage(filepath.Join(t.TempDir(), "missing.scriv")); !errors.Is(err, apperr.ErrStructural) {
		t.Errorf("missing path error = %v, want ErrStructural", err)
	}

	empty := t.TempDir()
	if err := ValidatePackage(empty); !errors.Is(err, apperr.ErrStructural) {
		t.Errorf("no descriptor error = %v, want ErrStructural", err)
	}

	noData := t.TempDir()
	if err := os.WriteFile(filepath.Join(noData, "P.scrivx"), []byte("<ScrivenerProject/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePackage(noData); !errors.Is(err, apperr.ErrStructural) {
		t.Errorf("missing Files/Data error = %v, want ErrStructural", err)
	}
}
