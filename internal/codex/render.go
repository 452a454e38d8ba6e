package codex

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/scrivex/internal/apperr"
	"github.com/starford/scrivex/internal/models"
)

// FormatVersion is the Codex document format emitted by this generator.
const FormatVersion = "1.2"

// Generator tags every index document this tool produces.
const Generator = "scrivex"

// Format selects the output serialization, fixed once per run.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown output format %q", apperr.ErrConfig, s)
}

// Ext returns the content file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatYAML:
		return ".codex.yaml"
	default:
		return ".codex.json"
	}
}

// Renderer serializes one content node into bytes.
type Renderer struct {
	format Format
	now    func() time.Time
}

// NewRenderer returns a renderer for the given format. now is injectable
// so document timestamps stay deterministic in tests; nil means time.Now.
func NewRenderer(format Format, now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{format: format, now: now}
}

// Attribute is one key/value metadata pair on a Codex document.
type Attribute struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// DocMeta is the metadata block of a full Codex document.
type DocMeta struct {
	FormatVersion string `yaml:"formatVersion" json:"formatVersion"`
	Created       string `yaml:"created" json:"created"`
}

// Document is the structured form written for the yaml and json formats.
type Document struct {
	Metadata   DocMeta     `yaml:"metadata" json:"metadata"`
	ID         string      `yaml:"id" json:"id"`
	Type       Type        `yaml:"type" json:"type"`
	Name       string      `yaml:"name" json:"name"`
	Attributes []Attribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Summary    string      `yaml:"summary,omitempty" json:"summary,omitempty"`
	Body       string      `yaml:"body,omitempty" json:"body,omitempty"`
}

// frontmatter is the YAML block heading a markdown content file.
type frontmatter struct {
	Type             Type   `yaml:"type"`
	Name             string `yaml:"name"`
	Label            string `yaml:"scrivener_label,omitempty"`
	Status           string `yaml:"scrivener_status,omitempty"`
	Tags             string `yaml:"tags,omitempty"`
	Summary          string `yaml:"summary,omitempty"`
	IncludeInCompile *bool  `yaml:"scrivener_include_in_compile,omitempty"`
}

// Render serializes a content node in the renderer's format.
func (r *Renderer) Render(n *models.BinderNode) ([]byte, error) {
	switch r.format {
	case FormatMarkdown:
		return r.renderMarkdown(n)
	case FormatYAML:
		data, err := yaml.Marshal(r.document(n))
		if err != nil {
			return nil, fmt.Errorf("codex: marshal yaml: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(r.document(n), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("codex: marshal json: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("%w: unknown output format %q", apperr.ErrConfig, r.format)
}

func (r *Renderer) renderMarkdown(n *models.BinderNode) ([]byte, error) {
	fm := frontmatter{
		Type:    Classify(n),
		Name:    n.Title,
		Label:   n.Label,
		Status:  n.Status,
		Summary: n.Synopsis,
	}
	if len(n.Keywords) > 0 {
		fm.Tags = strings.Join(n.Keywords, ", ")
	}
	if !n.IncludeInCompile {
		f := false
		fm.IncludeInCompile = &f
	}

	block, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("codex: marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(block)
	b.WriteString("---\n\n# ")
	b.WriteString(n.Title)
	b.WriteString("\n\n")
	b.WriteString(n.ConvertedBody)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// document builds the shared structure behind the yaml and json formats.
func (r *Renderer) document(n *models.BinderNode) Document {
	doc := Document{
		Metadata: DocMeta{
			FormatVersion: FormatVersion,
			Created:       r.now().Format(time.RFC3339),
		},
		ID:      n.ID,
		Type:    Classify(n),
		Name:    n.Title,
		Summary: n.Synopsis,
		Body:    n.ConvertedBody,
	}

	if n.Label != "" {
		doc.Attributes = append(doc.Attributes, Attribute{Key: "scrivener_label", Value: n.Label})
	}
	if n.Status != "" {
		doc.Attributes = append(doc.Attributes, Attribute{Key: "scrivener_status", Value: n.Status})
	}
	if len(n.Keywords) > 0 {
		doc.Attributes = append(doc.Attributes, Attribute{Key: "keywords", Value: strings.Join(n.Keywords, ", ")})
	}
	if !n.IncludeInCompile {
		doc.Attributes = append(doc.Attributes, Attribute{Key: "scrivener_include_in_compile", Value: "false"})
	}
	return doc
}
