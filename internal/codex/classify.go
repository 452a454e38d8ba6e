// Package codex projects a parsed binder tree into a Codex content tree:
// content files in markdown/yaml/json plus a graph of index documents that
// reference each other by relative include paths.
package codex

import (
	"strings"

	"github.com/starford/scrivex/internal/models"
)

// Type is the semantic Codex type of a binder node, derived from its
// label, title and structural kind.
type Type string

const (
	TypeChapter   Type = "chapter"
	TypeScene     Type = "scene"
	TypeCharacter Type = "character"
	TypeLocation  Type = "location"
	TypeAct       Type = "act"
	TypePart      Type = "part"
	TypeBook      Type = "book"
	TypeFolder    Type = "folder"
	TypeDocument  Type = "document"
)

// labelOrder and titleOrder fix the heuristic evaluation order; first
// match wins.
var labelOrder = []Type{TypeChapter, TypeScene, TypeCharacter, TypeLocation, TypeAct, TypePart, TypeBook}

var titleOrder = []Type{TypeChapter, TypeScene, TypeAct, TypeBook, TypePart}

// Classify maps a binder node to its semantic Codex type. Pure and total:
// label substring match first, then title prefix, then structural kind.
func Classify(n *models.BinderNode) Type {
	if n.Label != "" {
		label := strings.ToLower(n.Label)
		for _, t := range labelOrder {
			if strings.Contains(label, string(t)) {
				return t
			}
		}
	}

	title := strings.ToLower(n.Title)
	for _, t := range titleOrder {
		if strings.HasPrefix(title, string(t)) {
			return t
		}
	}

	if n.Kind == models.KindFolder || n.Kind == models.KindDraftFolder {
		return TypeFolder
	}
	return TypeDocument
}

// TypeSets configures which semantic types behave as containers (nest
// children, may own an index document) and which as content (one leaf
// file each).
type TypeSets struct {
	Containers map[Type]bool
	Content    map[Type]bool
}

// DefaultTypeSets returns the stock partition: acts/parts/books/folders
// are containers, chapters/scenes/documents are content.
func DefaultTypeSets() TypeSets {
	return TypeSets{
		Containers: map[Type]bool{TypeAct: true, TypePart: true, TypeBook: true, TypeFolder: true},
		Content:    map[Type]bool{TypeChapter: true, TypeScene: true, TypeDocument: true},
	}
}

// TypeSetsFromLists builds TypeSets from comma-split CLI values.
func TypeSetsFromLists(containers, content []string) TypeSets {
	ts := TypeSets{Containers: map[Type]bool{}, Content: map[Type]bool{}}
	for _, c := range containers {
		if c = strings.TrimSpace(c); c != "" {
			ts.Containers[Type(strings.ToLower(c))] = true
		}
	}
	for _, c := range content {
		if c = strings.TrimSpace(c); c != "" {
			ts.Content[Type(strings.ToLower(c))] = true
		}
	}
	return ts
}

// IsContainer reports whether the node organizes other nodes. Folder kinds
// are containers regardless of their classified type.
func (ts TypeSets) IsContainer(n *models.BinderNode) bool {
	if ts.Containers[Classify(n)] {
		return true
	}
	return n.Kind == models.KindFolder || n.Kind == models.KindDraftFolder
}

// IsContent reports whether the node materializes as a single output file.
// Text kind is content regardless of its classified type.
func (ts TypeSets) IsContent(n *models.BinderNode) bool {
	if ts.Content[Classify(n)] {
		return true
	}
	return n.Kind == models.KindText
}
