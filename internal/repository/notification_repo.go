package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"peopleflow/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (int, error) {
	r.logger.Debug("Inserting notification",
		zap.Int("user_id", n.UserID),
		zap.String("type", string(n.Type)),
		zap.String("priority", string(n.Priority)),
		zap.Bool("is_digest", n.IsDigest),
	)

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	actions, err := json.Marshal(n.Actions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
        INSERT INTO notifications (user_id, title, message, type, priority, metadata, deadline, actions, deep_link, is_digest)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at
    `
	err = r.db.QueryRow(ctx, query,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		n.Priority,
		metadata,
		n.Deadline,
		actions,
		n.DeepLink,
		n.IsDigest,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification",
			zap.Error(err),
			zap.Int("user_id", n.UserID),
		)
		return 0, err
	}

	r.logger.Info("Notification inserted successfully",
		zap.Int("id", n.ID),
		zap.Int("user_id", n.UserID),
	)
	return n.ID, nil
}

// MarkRead sets read_at once. Re-marking an already-read row is a no-op so
// the original read time survives for audit.
func (r *NotificationRepository) MarkRead(ctx context.Context, id int) error {
	query := `
        UPDATE notifications
        SET read_at = NOW()
        WHERE id = $1 AND read_at IS NULL
    `
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark notification as read",
			zap.Error(err),
			zap.Int("id", id),
		)
	}
	return err
}

// MarkActed sets acted_at once, same idempotency contract as MarkRead.
func (r *NotificationRepository) MarkActed(ctx context.Context, id int) error {
	query := `
        UPDATE notifications
        SET acted_at = NOW()
        WHERE id = $1 AND acted_at IS NULL
    `
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark notification as acted",
			zap.Error(err),
			zap.Int("id", id),
		)
	}
	return err
}

// MarkAllRead marks every unread notification of the user. Already-read
// rows are untouched.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int) (int64, error) {
	query := `
        UPDATE notifications
        SET read_at = NOW()
        WHERE user_id = $1 AND read_at IS NULL
    `
	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to mark all notifications as read",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return 0, err
	}

	updated := result.RowsAffected()
	r.logger.Info("Marked all notifications as read",
		zap.Int("user_id", userID),
		zap.Int64("updated", updated),
	)
	return updated, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]model.Notification, error) {
	r.logger.Debug("Listing notifications", zap.Int("user_id", userID), zap.Bool("unread_only", unreadOnly))

	query := `
        SELECT id, user_id, title, message, type, priority, metadata, deadline, actions, deep_link, read_at, acted_at, is_digest, created_at
        FROM notifications
        WHERE user_id = $1
    `
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query notifications",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var metadata, actions []byte
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.Priority,
			&metadata,
			&n.Deadline,
			&actions,
			&n.DeepLink,
			&n.ReadAt,
			&n.ActedAt,
			&n.IsDigest,
			&n.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan notification row", zap.Error(err))
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &n.Actions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
