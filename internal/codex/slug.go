package codex

import (
	"regexp"
	"strings"
)

var (
	slugStripRe  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaceRe  = regexp.MustCompile(`[\s_]+`)
	slugHyphenRe = regexp.MustCompile(`-+`)
)

// Slugify derives a filesystem-safe identifier from a free-text title.
// Never empty: titles that reduce to nothing become "untitled".
//
// Not collision-safe: sibling titles that slugify identically map to the
// same output path and the later write wins.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	slug = slugHyphenRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}
