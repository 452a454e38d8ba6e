// Package models defines the domain types for Scrivex.
package models

// ItemKind is the structural kind of a binder node as recorded in the
// .scrivx descriptor. It is distinct from the semantic Codex type derived
// by the classifier.
type ItemKind string

const (
	KindRoot           ItemKind = "Root"
	KindTrash          ItemKind = "Trash"
	KindTrashFolder    ItemKind = "TrashFolder"
	KindResearchFolder ItemKind = "ResearchFolder"
	KindDraftFolder    ItemKind = "DraftFolder"
	KindFolder         ItemKind = "Folder"
	KindText           ItemKind = "Text"
)

// BinderNode is a single item in the Scrivener binder tree. Children are
// owned by their parent and keep source order end-to-end.
type BinderNode struct {
	ID    string
	Kind  ItemKind
	Title string

	Created  string
	Modified string

	// Raw metadata IDs referencing the project-wide lookup tables.
	LabelID  *int
	StatusID *int

	// Resolved names, filled in by ResolveMetadata. An ID with no matching
	// definition stays unresolved.
	Label  string
	Status string

	Keywords []string
	Synopsis string

	IncludeInCompile bool

	// ContentPath points at the node's raw RTF on disk; empty for pure
	// containers.
	ContentPath string

	// ConvertedBody is populated exactly once by the conversion pass.
	ConvertedBody string

	Children []*BinderNode
}

// HasContent reports whether the node carries raw text to convert.
func (n *BinderNode) HasContent() bool {
	return n.ContentPath != ""
}

// LabelDef is one entry of the project's label lookup table.
type LabelDef struct {
	ID    int
	Name  string
	Color string
}

// StatusDef is one entry of the project's status lookup table.
type StatusDef struct {
	ID   int
	Name string
}

// ProjectMetadata holds project-level descriptive fields and the global
// label/status definitions. Read-only after the parse phase.
type ProjectMetadata struct {
	Identifier string
	Version    string
	Creator    string
	Device     string
	Author     string
	Title      string
	Created    string
	Modified   string

	Labels   []LabelDef
	Statuses []StatusDef
}

// LabelName resolves a label ID to its name; ok is false when no
// definition matches.
func (m *ProjectMetadata) LabelName(id int) (string, bool) {
	for _, l := range m.Labels {
		if l.ID == id {
			return l.Name, true
		}
	}
	return "", false
}

// StatusName resolves a status ID to its name.
func (m *ProjectMetadata) StatusName(id int) (string, bool) {
	for _, s := range m.Statuses {
		if s.ID == id {
			return s.Name, true
		}
	}
	return "", false
}

// Project is the fully parsed source: metadata plus the ordered forest of
// top-level binder items.
type Project struct {
	Meta  ProjectMetadata
	Items []*BinderNode

	// ScrivPath is the absolute path of the source .scriv package.
	ScrivPath string
}

// WalkText visits every Text node in source order, depth first.
func (p *Project) WalkText(fn func(*BinderNode)) {
	var walk func(items []*BinderNode)
	walk = func(items []*BinderNode) {
		for _, it := range items {
			if it.Kind == KindText {
				fn(it)
			}
			walk(it.Children)
		}
	}
	walk(p.Items)
}

// CountText returns the number of Text nodes in the tree.
func (p *Project) CountText() int {
	n := 0
	p.WalkText(func(*BinderNode) { n++ })
	return n
}

// WriteResult summarises a projection run.
type WriteResult struct {
	FilesWritten       int      `json:"filesWritten"`
	DirectoriesCreated int      `json:"directoriesCreated"`
	Errors             []string `json:"errors,omitempty"`

	// Paths lists every file the run wrote (or, in dry-run mode, would
	// have written), relative to the output root and in traversal order.
	Paths []string `json:"paths,omitempty"`
}
