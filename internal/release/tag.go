package release

import "strings"

// Tag derives the release tag from a human readable release name.
func Tag(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
