package models

import "time"

// Anime is a catalog title
type Anime struct {
	ID            uint64      `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	Title         string      `json:"title" gorm:"not null;index"`
	Description   string      `json:"description"`
	CoverImage    string      `json:"coverImage"`
	Year          int         `json:"year"`
	Status        AnimeStatus `json:"status" gorm:"type:varchar(16)" boltholdIndex:"Status"`
	Type          string      `json:"type"`
	AverageRating float64     `json:"averageRating"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// AnimeGenre links an anime to a genre tag
type AnimeGenre struct {
	ID      uint64 `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	AnimeID uint64 `json:"animeId" gorm:"index;not null" boltholdIndex:"AnimeID"`
	Genre   string `json:"genre" gorm:"not null"`
}

// AnimeSummary is an anime together with its episode count
type AnimeSummary struct {
	Anime
	EpisodeCount int64 `json:"episodeCount"`
}

// Episode is a single playable episode hosted on the video CDN
type Episode struct {
	ID        uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	AnimeID   uint64    `json:"animeId" gorm:"index;not null" boltholdIndex:"AnimeID"`
	Title     string    `json:"title"`
	Number    int       `json:"number"`
	VideoURL  string    `json:"videoUrl"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Duration  int       `json:"duration,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
