package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/genmedia-api/internal/models"
)

const postColumns = `id, user_id, caption, platforms, scheduled_at, media_status, media_urls,
	media_terminal_count, auto_publish, publish_status, external_post_id, publish_error,
	created_at, updated_at`

// SQLitePostRepository implements PostRepository for SQLite/libsql.
type SQLitePostRepository struct {
	db *sql.DB
}

// NewSQLitePostRepository creates a new scheduled post repository.
func NewSQLitePostRepository(db *sql.DB) *SQLitePostRepository {
	return &SQLitePostRepository{db: db}
}

// Create inserts a new post.
func (r *SQLitePostRepository) Create(ctx context.Context, post *models.ScheduledPost) error {
	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	if post.MediaStatus == "" {
		post.MediaStatus = models.MediaStatusGenerating
	}
	if post.PublishStatus == "" {
		post.PublishStatus = models.PublishStatusDraft
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		post.ID, post.UserID, post.Caption, encodeList(post.Platforms), nullTime(post.ScheduledAt),
		post.MediaStatus, encodeList(post.MediaURLs), post.MediaTerminalCount, boolToInt(post.AutoPublish),
		post.PublishStatus, nullString(post.ExternalPostID), nullString(post.PublishError),
		formatTime(post.CreatedAt), formatTime(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID returns the post, or nil if it does not exist.
func (r *SQLitePostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM scheduled_posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// ListByUser returns a user's posts, newest first.
func (r *SQLitePostRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ScheduledPost, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM scheduled_posts
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// UpdateMedia writes the aggregate. Notifications can race; terminalCount only
// grows, so a write based on fewer terminal jobs than already stored is skipped.
func (r *SQLitePostRepository) UpdateMedia(ctx context.Context, id string, status models.MediaStatus, urls []string, terminalCount int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_posts
		SET media_status = ?, media_urls = ?, media_terminal_count = ?, updated_at = ?
		WHERE id = ? AND media_terminal_count <= ?
	`, status, encodeList(urls), terminalCount, formatTime(time.Now()), id, terminalCount)
	if err != nil {
		return false, fmt.Errorf("failed to update post media: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ClaimPublish ensures a post is handed to the publisher once.
func (r *SQLitePostRepository) ClaimPublish(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_posts
		SET publish_status = 'publishing', updated_at = ?
		WHERE id = ? AND publish_status = 'draft'
	`, formatTime(time.Now()), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim post for publishing: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// SetPublishResult records the publisher's outcome.
func (r *SQLitePostRepository) SetPublishResult(ctx context.Context, id string, status models.PublishStatus, externalPostID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_posts
		SET publish_status = ?, external_post_id = ?, publish_error = ?, updated_at = ?
		WHERE id = ?
	`, status, nullString(externalPostID), nullString(errMsg), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set publish result: %w", err)
	}
	return nil
}

func scanPost(s scanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var platforms, mediaStatus, mediaURLs, publishStatus, createdAt, updatedAt string
	var scheduledAt, externalPostID, publishError sql.NullString
	var autoPublish int

	err := s.Scan(
		&post.ID, &post.UserID, &post.Caption, &platforms, &scheduledAt, &mediaStatus, &mediaURLs,
		&post.MediaTerminalCount, &autoPublish, &publishStatus, &externalPostID, &publishError,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.Platforms = decodeList(platforms)
	post.ScheduledAt = parseNullTime(scheduledAt)
	post.MediaStatus = models.MediaStatus(mediaStatus)
	post.MediaURLs = decodeList(mediaURLs)
	post.AutoPublish = autoPublish == 1
	post.PublishStatus = models.PublishStatus(publishStatus)
	post.ExternalPostID = externalPostID.String
	post.PublishError = publishError.String
	post.CreatedAt = parseTime(createdAt)
	post.UpdatedAt = parseTime(updatedAt)

	return &post, nil
}
