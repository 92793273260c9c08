package store

import (
	"sort"
	"strings"
	"time"

	"github.com/anidao/anidao/internal/models"
)

// Page returns the window [offset, offset+limit) of items. A non-positive
// limit means no upper bound.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SortNewest orders anime by creation time, newest first
func SortNewest(animes []*models.Anime) {
	sort.SliceStable(animes, func(i, j int) bool {
		if !animes[i].CreatedAt.Equal(animes[j].CreatedAt) {
			return animes[i].CreatedAt.After(animes[j].CreatedAt)
		}
		return animes[i].ID > animes[j].ID
	})
}

// SortTrending orders anime by average rating, then by recency
func SortTrending(animes []*models.Anime) {
	sort.SliceStable(animes, func(i, j int) bool {
		if animes[i].AverageRating != animes[j].AverageRating {
			return animes[i].AverageRating > animes[j].AverageRating
		}
		if !animes[i].CreatedAt.Equal(animes[j].CreatedAt) {
			return animes[i].CreatedAt.After(animes[j].CreatedAt)
		}
		return animes[i].ID > animes[j].ID
	})
}

// SortByIDDesc orders anime by id, highest first
func SortByIDDesc(animes []*models.Anime) {
	sort.Slice(animes, func(i, j int) bool { return animes[i].ID > animes[j].ID })
}

// TitleMatches reports whether query occurs in title ignoring case
func TitleMatches(title, query string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(query))
}

// AverageScore returns the mean of the rating scores, or 0 when there are none
func AverageScore(ratings []*models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, r := range ratings {
		total += r.Score
	}
	return float64(total) / float64(len(ratings))
}

// SortRecent orders items by the timestamp returned from at, newest first,
// breaking ties on the higher id.
func SortRecent[T any](items []T, at func(T) time.Time, id func(T) uint64) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) > id(items[j])
	})
}
