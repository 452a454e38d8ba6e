// Package rtf converts Scrivener RTF content files to text through a
// cascade of strategies: pandoc (external tool), an embedded RTF library,
// and a raw read that always succeeds.
package rtf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/EndFirstCorp/rtf2txt"

	"github.com/starford/scrivex/internal/apperr"
)

// Method names a conversion strategy.
type Method string

const (
	MethodPandoc  Method = "pandoc"
	MethodLibrary Method = "library"
	MethodRaw     Method = "raw"
)

// ParseMethod validates a user-supplied method name.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(s)) {
	case MethodPandoc:
		return MethodPandoc, nil
	case MethodLibrary:
		return MethodLibrary, nil
	case MethodRaw:
		return MethodRaw, nil
	}
	return "", fmt.Errorf("%w: unknown rtf method %q", apperr.ErrConfig, s)
}

// DefaultTimeout bounds a single pandoc invocation.
const DefaultTimeout = 30 * time.Second

// Options tunes converter construction.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger

	// LookPath is injectable so tests can simulate a missing pandoc.
	LookPath func(string) (string, error)
}

// Converter runs the cascade. Structurally unavailable strategies are
// pruned at construction; remaining ones fall through at call time in
// fixed priority order pandoc → library → raw.
type Converter struct {
	strategies []strategy
	timeout    time.Duration
	logger     *slog.Logger
}

type strategy struct {
	method  Method
	convert func(ctx context.Context, path string) (string, error)
}

// NewConverter builds the cascade starting at the preferred method.
func NewConverter(preferred Method, opts Options) *Converter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}

	c := &Converter{timeout: opts.Timeout, logger: opts.Logger}

	if preferred == MethodPandoc {
		if _, err := opts.LookPath("pandoc"); err != nil {
			opts.Logger.Warn("pandoc not found, falling back to library")
			preferred = MethodLibrary
		}
	}

	all := []strategy{
		{MethodPandoc, c.convertPandoc},
		{MethodLibrary, c.convertLibrary},
		{MethodRaw, c.convertRaw},
	}
	for i, s := range all {
		if s.method == preferred {
			c.strategies = all[i:]
			break
		}
	}
	return c
}

// Method returns the first strategy still in the cascade.
func (c *Converter) Method() Method {
	return c.strategies[0].method
}

// Convert turns one RTF file into text. It never fails: strategy errors
// fall through to the next strategy, and the final raw strategy returns a
// bracketed error string at worst. A missing file converts to "".
func (c *Converter) Convert(ctx context.Context, path string) string {
	if _, err := os.Stat(path); err != nil {
		c.logger.Warn("rtf file not found", slog.String("path", path))
		return ""
	}

	for _, s := range c.strategies {
		text, err := s.convert(ctx, path)
		if err == nil {
			return text
		}
		c.logger.Warn("rtf conversion failed, falling back",
			slog.String("method", string(s.method)),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	// Unreachable: raw never errors.
	return ""
}

func (c *Converter) convertPandoc(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pandoc", "-f", "rtf", "-t", "markdown", path)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("rtf: pandoc timed out after %s", c.timeout)
		}
		return "", fmt.Errorf("rtf: pandoc: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return collapseBlankLines(out.String(), false), nil
}

func (c *Converter) convertLibrary(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("rtf: open: %w", err)
	}
	defer f.Close()

	buf, err := rtf2txt.Text(f)
	if err != nil {
		return "", fmt.Errorf("rtf: rtf2txt: %w", err)
	}
	return collapseBlankLines(buf.String(), true), nil
}

// convertRaw returns the unprocessed file bytes as text. It reports no
// error: an unreadable file becomes an inline bracketed error string.
func (c *Converter) convertRaw(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error("rtf raw read failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Sprintf("[Read error: %v]", err), nil
	}
	return string(data), nil
}

// collapseBlankLines reduces runs of blank lines to a single blank line.
// When trimLines is set each line is also stripped and the result is
// re-joined into blank-line-separated paragraphs (the embedded library
// emits plain text, not markdown).
func collapseBlankLines(text string, trimLines bool) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	prevBlank := false

	for _, line := range lines {
		if trimLines {
			line = strings.TrimSpace(line)
		}
		blank := strings.TrimSpace(line) == ""
		if blank && prevBlank {
			continue
		}
		cleaned = append(cleaned, line)
		prevBlank = blank
	}

	joined := strings.TrimSpace(strings.Join(cleaned, "\n"))
	if !trimLines {
		return joined
	}

	var paragraphs []string
	for _, p := range strings.Split(joined, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
