package utils

import "strings"

// ParseGenres splits a comma separated genre list, trimming and lowercasing
// each entry and dropping blanks.
func ParseGenres(input string) []string {
	var genres []string
	for _, part := range strings.Split(input, ",") {
		g := strings.ToLower(strings.TrimSpace(part))
		if g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}
