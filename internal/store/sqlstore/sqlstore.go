// Package sqlstore implements store.Store on gorm for sqlite and postgres.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the relational content store
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// sqliteParams take the write lock when a transaction begins. A deferred
// transaction that upgrades after reading fails with SQLITE_BUSY without
// waiting on the busy timeout.
const sqliteParams = "?_busy_timeout=5000&_txlock=immediate"

// OpenSQLite opens a sqlite database file
func OpenSQLite(path string, logger *logrus.Logger) (*Store, error) {
	return open(sqlite.Open(path+sqliteParams), logger)
}

// OpenPostgres connects to a postgres database
func OpenPostgres(dsn string, logger *logrus.Logger) (*Store, error) {
	return open(postgres.Open(dsn), logger)
}

func open(dialector gorm.Dialector, logger *logrus.Logger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: store.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates every table and index
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.User{},
		&models.Anime{},
		&models.AnimeGenre{},
		&models.Episode{},
		&models.WatchHistory{},
		&models.Favorite{},
		&models.Comment{},
		&models.Rating{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// first runs a First query and maps a missing row to nil
func first[T any](q *gorm.DB) (*T, error) {
	var out T
	err := q.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// withLimit applies limit when it is positive
func withLimit(q *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return q.Limit(limit)
	}
	return q
}

// Users

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return first[models.User](s.db.WithContext(ctx).Where("telegram_id = ?", telegramID))
}

func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return first[models.User](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Select("*").Omit("id").Updates(user)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Anime

func (s *Store) ListAnimes(ctx context.Context, limit, offset int) ([]*models.Anime, error) {
	var animes []*models.Anime
	q := withLimit(s.db.WithContext(ctx).Order("id DESC").Offset(offset), limit)
	if err := q.Find(&animes).Error; err != nil {
		return nil, fmt.Errorf("failed to list animes: %w", err)
	}
	return animes, nil
}

func (s *Store) GetAnime(ctx context.Context, id uint64) (*models.Anime, error) {
	return first[models.Anime](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) TrendingAnimes(ctx context.Context, limit int) ([]*models.Anime, error) {
	var animes []*models.Anime
	q := s.db.WithContext(ctx).Order("average_rating DESC").Order("created_at DESC").Order("id DESC")
	err := withLimit(q, limit).Find(&animes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trending animes: %w", err)
	}
	return animes, nil
}

func (s *Store) NewReleases(ctx context.Context, limit int) ([]*models.Anime, error) {
	var animes []*models.Anime
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	err := withLimit(q, limit).Find(&animes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list new releases: %w", err)
	}
	return animes, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchAnimes(ctx context.Context, query string) ([]*models.Anime, error) {
	var animes []*models.Anime
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	err := s.db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("id DESC").Find(&animes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search animes: %w", err)
	}
	return animes, nil
}

func (s *Store) CreateAnime(ctx context.Context, anime *models.Anime, genres []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(anime).Error; err != nil {
			return fmt.Errorf("failed to insert anime: %w", err)
		}
		for _, genre := range genres {
			if err := tx.Create(&models.AnimeGenre{AnimeID: anime.ID, Genre: genre}).Error; err != nil {
				return fmt.Errorf("failed to insert genre: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) AddAnimeGenre(ctx context.Context, animeID uint64, genre string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow[models.Anime](tx, animeID); err != nil {
			return err
		}
		return tx.Create(&models.AnimeGenre{AnimeID: animeID, Genre: genre}).Error
	})
}

func (s *Store) ListAnimeGenres(ctx context.Context, animeID uint64) ([]string, error) {
	var genres []string
	err := s.db.WithContext(ctx).Model(&models.AnimeGenre{}).
		Where("anime_id = ?", animeID).Order("id ASC").Pluck("genre", &genres).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

func (s *Store) ListAnimeSummaries(ctx context.Context) ([]*models.AnimeSummary, error) {
	var summaries []*models.AnimeSummary
	err := s.db.WithContext(ctx).Model(&models.Anime{}).
		Select("animes.*, COUNT(episodes.id) AS episode_count").
		Joins("LEFT JOIN episodes ON episodes.anime_id = animes.id").
		Group("animes.id").
		Order("animes.created_at DESC").Order("animes.id DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list anime summaries: %w", err)
	}
	return summaries, nil
}

// Episodes

func (s *Store) ListEpisodes(ctx context.Context, animeID uint64) ([]*models.Episode, error) {
	var episodes []*models.Episode
	err := s.db.WithContext(ctx).Where("anime_id = ?", animeID).Order("number ASC").Order("id ASC").Find(&episodes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	return episodes, nil
}

func (s *Store) GetEpisode(ctx context.Context, id uint64) (*models.Episode, error) {
	return first[models.Episode](s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) CreateEpisode(ctx context.Context, episode *models.Episode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow[models.Anime](tx, episode.AnimeID); err != nil {
			return err
		}
		return tx.Create(episode).Error
	})
}

// Watch history

func (s *Store) ListWatchHistory(ctx context.Context, userID uint64) ([]*models.WatchHistoryEntry, error) {
	var rows []*models.WatchHistory
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list watch history: %w", err)
	}

	entries := make([]*models.WatchHistoryEntry, 0, len(rows))
	for _, h := range rows {
		entry := &models.WatchHistoryEntry{WatchHistory: *h}
		if entry.Episode, err = s.GetEpisode(ctx, h.EpisodeID); err != nil {
			return nil, err
		}
		if entry.Episode != nil {
			if entry.Anime, err = s.GetAnime(ctx, entry.Episode.AnimeID); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) GetWatchHistory(ctx context.Context, userID, episodeID uint64) (*models.WatchHistory, error) {
	return first[models.WatchHistory](s.db.WithContext(ctx).Where("user_id = ? AND episode_id = ?", userID, episodeID))
}

func (s *Store) UpsertWatchHistory(ctx context.Context, userID, episodeID uint64, progress int, completed bool) (*models.WatchHistory, error) {
	now := store.Now()
	row := &models.WatchHistory{
		UserID:    userID,
		EpisodeID: episodeID,
		Progress:  progress,
		Completed: completed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "episode_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress", "completed", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert watch history: %w", err)
	}
	return s.GetWatchHistory(ctx, userID, episodeID)
}

// Favorites

func (s *Store) ListFavorites(ctx context.Context, userID uint64) ([]*models.FavoriteEntry, error) {
	var rows []*models.Favorite
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	entries := make([]*models.FavoriteEntry, 0, len(rows))
	for _, f := range rows {
		entry := &models.FavoriteEntry{Favorite: *f}
		if entry.Anime, err = s.GetAnime(ctx, f.AnimeID); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) GetFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	return first[models.Favorite](s.db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID))
}

func (s *Store) AddFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	row := &models.Favorite{UserID: userID, AnimeID: animeID, CreatedAt: store.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "anime_id"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return s.GetFavorite(ctx, userID, animeID)
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, animeID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID).Delete(&models.Favorite{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Comments

type commentRow struct {
	models.Comment
	Username  string
	FirstName string
	LastName  string
	PhotoURL  string
}

func (s *Store) ListComments(ctx context.Context, episodeID uint64) ([]*models.CommentEntry, error) {
	var rows []commentRow
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("comments.*, users.username, users.first_name, users.last_name, users.photo_url").
		Joins("LEFT JOIN users ON users.id = comments.user_id").
		Where("comments.episode_id = ?", episodeID).
		Order("comments.created_at DESC").Order("comments.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	entries := make([]*models.CommentEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, &models.CommentEntry{
			Comment: r.Comment,
			User: models.Author{
				Username:  r.Username,
				FirstName: r.FirstName,
				LastName:  r.LastName,
				PhotoURL:  r.PhotoURL,
			},
		})
	}
	return entries, nil
}

func (s *Store) AddComment(ctx context.Context, comment *models.Comment) error {
	comment.Likes, comment.Dislikes = 0, 0
	return s.db.WithContext(ctx).Create(comment).Error
}

func (s *Store) vote(ctx context.Context, id uint64, column string) (*models.Comment, error) {
	var comment *models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).Where("id = ?", id).
			UpdateColumn(column, gorm.Expr(column+" + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		var err error
		comment, err = first[models.Comment](tx.Where("id = ?", id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Store) LikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(ctx, id, "likes")
}

func (s *Store) DislikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(ctx, id, "dislikes")
}

// Ratings

func (s *Store) ListRatings(ctx context.Context, animeID uint64) ([]*models.Rating, error) {
	var ratings []*models.Rating
	err := s.db.WithContext(ctx).Where("anime_id = ?", animeID).Order("created_at DESC").Order("id DESC").Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}

func (s *Store) GetRating(ctx context.Context, userID, animeID uint64) (*models.Rating, error) {
	return first[models.Rating](s.db.WithContext(ctx).Where("user_id = ? AND anime_id = ?", userID, animeID))
}

func (s *Store) UpsertRating(ctx context.Context, userID, animeID uint64, score int) (*models.Rating, error) {
	var rating *models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRow[models.Anime](tx, animeID); err != nil {
			return err
		}

		row := &models.Rating{UserID: userID, AnimeID: animeID, Score: score, CreatedAt: store.Now()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "anime_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score"}),
		}).Create(row).Error
		if err != nil {
			return err
		}

		var avg float64
		err = tx.Model(&models.Rating{}).Where("anime_id = ?", animeID).
			Select("COALESCE(AVG(score), 0)").Scan(&avg).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Anime{}).Where("id = ?", animeID).UpdateColumn("average_rating", avg).Error
		if err != nil {
			return err
		}

		rating, err = first[models.Rating](tx.Where("user_id = ? AND anime_id = ?", userID, animeID))
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to upsert rating: %w", err)
	}
	return rating, nil
}

// requireRow returns store.ErrNotFound unless a row of T with the id exists
func requireRow[T any](tx *gorm.DB, id uint64) error {
	var count int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return nil
}

// lockRow is requireRow holding the row for update until the transaction
// ends, so writers recomputing an aggregate of the same parent run one at a
// time. sqlite drops the locking clause; its immediate transactions already
// serialize writers.
func lockRow[T any](tx *gorm.DB, id uint64) error {
	var row T
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
