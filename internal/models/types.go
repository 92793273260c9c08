package models

import "strings"

// AnimeStatus represents the airing state of an anime
type AnimeStatus string

const (
	StatusAiring    AnimeStatus = "airing"
	StatusCompleted AnimeStatus = "completed"
	StatusUpcoming  AnimeStatus = "upcoming"
)

// AnimeStatuses lists every accepted status in display order
var AnimeStatuses = []AnimeStatus{StatusAiring, StatusCompleted, StatusUpcoming}

// ParseAnimeStatus matches s case-insensitively against the known statuses
func ParseAnimeStatus(s string) (AnimeStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, status := range AnimeStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// Valid reports whether the status is one of the known values
func (s AnimeStatus) Valid() bool {
	switch s {
	case StatusAiring, StatusCompleted, StatusUpcoming:
		return true
	}
	return false
}

// Rating bounds
const (
	MinScore = 1
	MaxScore = 5
)
