package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
	FormatJSON     = "json"
)

// RTF conversion methods.
const (
	RTFMethodPandoc  = "pandoc"
	RTFMethodLibrary = "library"
	RTFMethodRaw     = "raw"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Import  ImportConfig      `yaml:"import"`
	RTF     RTFConfig         `yaml:"rtf"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Import.Validate(); err != nil {
		return err
	}
	return c.RTF.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ImportConfig controls the projection itself.
type ImportConfig struct {
	// Format is the content file serialization: markdown, yaml or json.
	Format string `yaml:"format"`

	// IndexDepth is the deepest level at which a container still owns its
	// own index document. 0 means only the root index exists.
	IndexDepth int `yaml:"index_depth"`

	// Containers and Content override the semantic types partitioned as
	// containers and as content files.
	Containers []string `yaml:"containers"`
	Content    []string `yaml:"content"`

	// Flat selects the legacy flat layout instead of nested indexes.
	Flat bool `yaml:"flat"`

	// GenerateIndex controls index emission in flat mode.
	GenerateIndex bool `yaml:"generate_index"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.Required, validation.In(FormatMarkdown, FormatYAML, FormatJSON)),
		validation.Field(&c.IndexDepth, validation.Min(0)),
		validation.Field(&c.Containers, validation.Required),
		validation.Field(&c.Content, validation.Required),
	)
}

// RTFConfig controls the RTF conversion cascade.
type RTFConfig struct {
	Method         string `yaml:"method"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the RTF configuration.
func (c *RTFConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Method, validation.Required, validation.In(RTFMethodPandoc, RTFMethodLibrary, RTFMethodRaw)),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

// CatalogConfig holds the optional run-catalog database path. Empty
// disables the catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Enabled         bool `yaml:"enabled"`
	DebounceSeconds int  `yaml:"debounce_seconds"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Import: ImportConfig{
			Format:        FormatMarkdown,
			IndexDepth:    1,
			Containers:    []string{"act", "part", "book", "folder"},
			Content:       []string{"chapter", "scene", "document"},
			GenerateIndex: true,
		},
		RTF: RTFConfig{
			Method:         RTFMethodLibrary,
			TimeoutSeconds: 30,
		},
		Watch: WatchConfig{
			DebounceSeconds: 2,
		},
	}
}

// String renders the key settings for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("format=%s index_depth=%d flat=%t rtf=%s", c.Import.Format, c.Import.IndexDepth, c.Import.Flat, c.RTF.Method)
}
