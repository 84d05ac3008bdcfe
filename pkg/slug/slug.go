package slug

import (
	"regexp"
	"strings"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// accentFold maps the accented Latin characters that show up in catalog
// titles (language and area-studies courses, professor names) to ASCII.
var accentFold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o", "õ", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
)

// Generate creates a URL-friendly slug from the given text.
//
// Examples:
//   - "CSCI 210: Data Structures" → "csci-210-data-structures"
//   - "Introduction à la Littérature" → "introduction-a-la-litterature"
//   - "Hello   World!" → "hello-world"
func Generate(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = accentFold.Replace(slug)

	// Replace any non-alphanumeric characters with hyphens
	slug = slugRegexp.ReplaceAllString(slug, "-")

	// Trim leading and trailing hyphens
	slug = strings.Trim(slug, "-")

	// Collapse consecutive hyphens into single hyphens
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return slug
}
