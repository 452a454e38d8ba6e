// Package scrivx parses a Scrivener project package: the .scrivx XML
// descriptor becomes a binder tree, metadata IDs are resolved against the
// project-wide lookup tables, and each Text node is paired with its
// content.rtf on disk.
package scrivx

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/scrivex/internal/apperr"
	"github.com/starford/scrivex/internal/models"
)

// xmlProject mirrors the .scrivx document root.
type xmlProject struct {
	XMLName    xml.Name `xml:"ScrivenerProject"`
	Identifier string   `xml:"Identifier,attr"`
	Version    string   `xml:"Version,attr"`
	Creator    string   `xml:"Creator,attr"`
	Device     string   `xml:"Device,attr"`
	Author     string   `xml:"Author,attr"`
	Created    string   `xml:"Created,attr"`
	Modified   string   `xml:"Modified,attr"`

	Labels   []xmlLabel  `xml:"LabelSettings>Labels>Label"`
	Statuses []xmlStatus `xml:"StatusSettings>StatusItems>Status"`
	Binder   []xmlItem   `xml:"Binder>BinderItem"`
}

type xmlLabel struct {
	ID    int    `xml:"ID,attr"`
	Color string `xml:"Color,attr"`
	Name  string `xml:",chardata"`
}

type xmlStatus struct {
	ID   int    `xml:"ID,attr"`
	Name string `xml:",chardata"`
}

type xmlItem struct {
	UUID     string `xml:"UUID,attr"`
	Type     string `xml:"Type,attr"`
	Created  string `xml:"Created,attr"`
	Modified string `xml:"Modified,attr"`

	Title    *string      `xml:"Title"`
	MetaData *xmlMetaData `xml:"MetaData"`
	Children []xmlItem    `xml:"Children>BinderItem"`
}

type xmlMetaData struct {
	LabelID          string `xml:"LabelID"`
	StatusID         string `xml:"StatusID"`
	Synopsis         string `xml:"Synopsis"`
	IncludeInCompile string `xml:"IncludeInCompile"`
	IconFileName     string `xml:"IconFileName"`
}

// Parser reads one Scrivener package.
type Parser struct {
	scrivPath  string
	scrivxPath string
	dataDir    string
}

// NewParser locates the .scrivx descriptor inside the package. A package
// without one is a structural error.
func NewParser(scrivPath string) (*Parser, error) {
	abs, err := filepath.Abs(scrivPath)
	if err != nil {
		return nil, fmt.Errorf("scrivx: resolve path: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(abs, "*.scrivx"))
	if err != nil {
		return nil, fmt.Errorf("scrivx: glob: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no .scrivx file found in %s", apperr.ErrStructural, abs)
	}
	return &Parser{
		scrivPath:  abs,
		scrivxPath: matches[0],
		dataDir:    filepath.Join(abs, "Files", "Data"),
	}, nil
}

// ValidatePackage checks that path looks like a Scrivener package: a
// directory holding a .scrivx descriptor and a Files/Data tree.
func ValidatePackage(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", apperr.ErrStructural, path)
	}
	matches, _ := filepath.Glob(filepath.Join(path, "*.scrivx"))
	if len(matches) == 0 {
		return fmt.Errorf("%w: no .scrivx file found in %s", apperr.ErrStructural, path)
	}
	if info, err := os.Stat(filepath.Join(path, "Files", "Data")); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: missing Files/Data directory in %s", apperr.ErrStructural, path)
	}
	return nil
}

// Parse reads the descriptor and builds the project tree. Content paths
// are resolved here; label/status names are not (see ResolveMetadata).
func (p *Parser) Parse() (*models.Project, error) {
	data, err := os.ReadFile(p.scrivxPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrStructural, p.scrivxPath, err)
	}

	var doc xmlProject
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", apperr.ErrStructural, p.scrivxPath, err)
	}

	meta := models.ProjectMetadata{
		Identifier: doc.Identifier,
		Version:    doc.Version,
		Creator:    doc.Creator,
		Device:     doc.Device,
		Author:     doc.Author,
		Title:      strings.TrimSuffix(filepath.Base(p.scrivPath), ".scriv"),
		Created:    doc.Created,
		Modified:   doc.Modified,
	}
	for _, l := range doc.Labels {
		meta.Labels = append(meta.Labels, models.LabelDef{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	for _, s := range doc.Statuses {
		meta.Statuses = append(meta.Statuses, models.StatusDef{ID: s.ID, Name: s.Name})
	}

	return &models.Project{
		Meta:      meta,
		Items:     p.buildItems(doc.Binder),
		ScrivPath: p.scrivPath,
	}, nil
}

func (p *Parser) buildItems(items []xmlItem) []*models.BinderNode {
	var out []*models.BinderNode
	for _, it := range items {
		kind := models.ItemKind(it.Type)
		if kind == "" {
			kind = models.KindText
		}

		title := "Untitled"
		if it.Title != nil && *it.Title != "" {
			title = *it.Title
		}

		node := &models.BinderNode{
			ID:               it.UUID,
			Kind:             kind,
			Title:            title,
			Created:          it.Created,
			Modified:         it.Modified,
			IncludeInCompile: true,
			ContentPath:      p.contentPath(it.UUID),
		}

		if md := it.MetaData; md != nil {
			if id, err := strconv.Atoi(strings.TrimSpace(md.LabelID)); err == nil {
				node.LabelID = &id
			}
			if id, err := strconv.Atoi(strings.TrimSpace(md.StatusID)); err == nil {
				node.StatusID = &id
			}
			node.Synopsis = md.Synopsis
			if md.IncludeInCompile != "" {
				node.IncludeInCompile = md.IncludeInCompile == "Yes"
			}
		}

		node.Children = p.buildItems(it.Children)
		out = append(out, node)
	}
	return out
}

// contentPath locates Files/Data/<UUID>/content.rtf, falling back to a
// case-insensitive directory scan. Empty when the node has no content.
func (p *Parser) contentPath(uuid string) string {
	if uuid == "" {
		return ""
	}
	direct := filepath.Join(p.dataDir, uuid, "content.rtf")
	if _, err := os.Stat(direct); err == nil {
		return direct
	}

	entries, err := os.ReadDir(p.dataDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.EqualFold(e.Name(), uuid) {
			continue
		}
		candidate := filepath.Join(p.dataDir, e.Name(), "content.rtf")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ResolveMetadata fills in label and status names from the project lookup
// tables. IDs without a matching definition stay unresolved; that is not
// an error.
func ResolveMetadata(p *models.Project) {
	var resolve func(items []*models.BinderNode)
	resolve = func(items []*models.BinderNode) {
		for _, it := range items {
			if it.LabelID != nil {
				if name, ok := p.Meta.LabelName(*it.LabelID); ok {
					it.Label = name
				}
			}
			if it.StatusID != nil {
				if name, ok := p.Meta.StatusName(*it.StatusID); ok {
					it.Status = name
				}
			}
			resolve(it.Children)
		}
	}
	resolve(p.Items)
}
