package rtf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.rtf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"pandoc", "Library", "RAW"} {
		if _, err := ParseMethod(s); err != nil {
			t.Errorf("ParseMethod(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseMethod("textutil"); err == nil {
		t.Error("ParseMethod should reject unknown methods")
	}
}

func TestNewConverterPrunesMissingPandoc(t *testing.T) {
	c := NewConverter(MethodPandoc, Options{
		Logger:   testLogger,
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
	})
	if got := c.Method(); got != MethodLibrary {
		t.Errorf("Method() = %q, want library when pandoc is unavailable", got)
	}
}

func TestNewConverterKeepsAvailablePandoc(t *testing.T) {
	c := NewConverter(MethodPandoc, Options{
		Logger:   testLogger,
		LookPath: func(string) (string, error) { return "/usr/bin/pandoc", nil },
	})
	if got := c.Method(); got != MethodPandoc {
		t.Errorf("Method() = %q, want pandoc", got)
	}
}

func TestNewConverterStartsAtPreferred(t *testing.T) {
	if got := NewConverter(MethodLibrary, Options{Logger: testLogger}).Method(); got != MethodLibrary {
		t.Errorf("Method() = %q, want library", got)
	}
	if got := NewConverter(MethodRaw, Options{Logger: testLogger}).Method(); got != MethodRaw {
		t.Errorf("Method() = %q, want raw", got)
	}
}

func TestConvertRaw(t *testing.T) {
	const body = `{\rtf1\ansi Hello\par}`
	path := writeFixture(t, body)

	c := NewConverter(MethodRaw, Options{Logger: testLogger})
	if got := c.Convert(context.Background(), path); got != body {
		t.Errorf("raw conversion = %q, want the file bytes unchanged", got)
	}
}

func TestConvertMissingFile(t *testing.T) {
	c := NewConverter(MethodRaw, Options{Logger: testLogger})
	if got := c.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.rtf")); got != "" {
		t.Errorf("missing file should convert to empty string, got %q", got)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		trim bool
		want string
	}{
		{"single run collapsed", "a\n\n\n\nb", false, "a\n\nb"},
		{"leading and trailing stripped", "\n\na\n\n", false, "a"},
		{"interior whitespace kept without trim", "a\n  indented\nb", false, "a\n  indented\nb"},
		{"trim mode strips lines", "  a  \n\n\n  b  \n", true, "a\n\nb"},
		{"trim mode drops blank paragraphs", "a\n   \n\nb", true, "a\n\nb"},
		{"empty input", "\n\n\n", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collapseBlankLines(tt.in, tt.trim); got != tt.want {
				t.Errorf("collapseBlankLines(%q, %t) = %q, want %q", tt.in, tt.trim, got, tt.want)
			}
		})
	}
}
