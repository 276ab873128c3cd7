package tag

import (
	"strings"
)

// TagSeparator separates tags in delimited input such as "news, Go,databases".
const TagSeparator = ","

// ParseTags splits delimited input into normalized tags.
func ParseTags(input string) []string {
	return Normalize(strings.Split(input, TagSeparator))
}

// Normalize trims and lower-cases every tag, drops empty ones and removes
// duplicates. The first occurrence wins, so input order is preserved.
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, raw := range tags {
		text := strings.ToLower(strings.TrimSpace(raw))
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		result = append(result, text)
	}
	return result
}

// difference returns the elements of a that are not in b, in the order of a.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	result := make([]string, 0, len(a))
	for _, v := range a {
		if _, ok := set[v]; !ok {
			result = append(result, v)
		}
	}
	return result
}
