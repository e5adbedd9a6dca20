package common

import (
	"errors"
	"regexp"
	"strings"
)

// maxSlugLen keeps blob file names well under NAME_MAX once the
// document ID and extension are added around the slug.
const maxSlugLen = 64

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify reduces an upload's file name to a lowercase a-z0-9 token
// usable in a blob path. fallback is used when input reduces to
// nothing; both reducing to nothing is an error.
func Slugify(input, fallback string) (string, error) {
	slug := slugify(input)
	if slug == "" {
		slug = slugify(fallback)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := strings.Trim(nonSlugChars.ReplaceAllString(lower, "-"), "-")
	if len(slug) <= maxSlugLen {
		return slug
	}
	cut := slug[:maxSlugLen]
	// Cut on a word boundary when one falls in the second half.
	if i := strings.LastIndexByte(cut, '-'); i > maxSlugLen/2 {
		cut = cut[:i]
	}
	return cut
}
