package models

import "time"

// WatchHistory is a user's playback progress on one episode
type WatchHistory struct {
	ID        uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	UserID    uint64    `json:"userId" gorm:"uniqueIndex:idx_watch_user_episode;not null" boltholdIndex:"UserID"`
	EpisodeID uint64    `json:"episodeId" gorm:"uniqueIndex:idx_watch_user_episode;not null"`
	Progress  int       `json:"progress"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WatchHistoryEntry is a watch history row with its episode and anime
type WatchHistoryEntry struct {
	WatchHistory
	Episode *Episode `json:"episode"`
	Anime   *Anime   `json:"anime"`
}

// Favorite marks an anime as favorited by a user
type Favorite struct {
	ID        uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	UserID    uint64    `json:"userId" gorm:"uniqueIndex:idx_favorite_user_anime;not null" boltholdIndex:"UserID"`
	AnimeID   uint64    `json:"animeId" gorm:"uniqueIndex:idx_favorite_user_anime;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavoriteEntry is a favorite with its anime
type FavoriteEntry struct {
	Favorite
	Anime *Anime `json:"anime"`
}

// Comment is a user comment on an episode
type Comment struct {
	ID        uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	UserID    uint64    `json:"userId" gorm:"index;not null"`
	EpisodeID uint64    `json:"episodeId" gorm:"index;not null" boltholdIndex:"EpisodeID"`
	Content   string    `json:"content" gorm:"not null"`
	Likes     int       `json:"likes" gorm:"not null;default:0"`
	Dislikes  int       `json:"dislikes" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentEntry is a comment with its author profile
type CommentEntry struct {
	Comment
	User Author `json:"user"`
}

// Rating is a user's 1..5 score for an anime
type Rating struct {
	ID        uint64    `json:"id" gorm:"primaryKey" boltholdKey:"ID"`
	UserID    uint64    `json:"userId" gorm:"uniqueIndex:idx_rating_user_anime;not null"`
	AnimeID   uint64    `json:"animeId" gorm:"uniqueIndex:idx_rating_user_anime;not null" boltholdIndex:"AnimeID"`
	Score     int       `json:"score" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}
