package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"peopleflow/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PreferenceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPreferenceRepository(db *pgxpool.Pool, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{db: db, logger: logger}
}

// Get returns the stored preferences for a user, or (nil, nil) when no row
// exists. Absence is not an error: the caller resolves defaults.
func (r *PreferenceRepository) Get(ctx context.Context, userID int) (*model.NotificationPreferences, error) {
	query := `
        SELECT user_id, digest_frequency, quiet_hours_start, quiet_hours_end,
               weekend_mode, vacation_mode, delegate_user_id,
               category_channels, priority_channels, updated_at
        FROM notification_preferences
        WHERE user_id = $1
    `
	var p model.NotificationPreferences
	var categoryChannels, priorityChannels []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.DigestFrequency,
		&p.QuietHoursStart,
		&p.QuietHoursEnd,
		&p.WeekendMode,
		&p.VacationMode,
		&p.DelegateUserID,
		&categoryChannels,
		&priorityChannels,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to query preferences",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return nil, err
	}

	if len(categoryChannels) > 0 {
		if err := json.Unmarshal(categoryChannels, &p.CategoryChannels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category channels: %w", err)
		}
	}
	if len(priorityChannels) > 0 {
		if err := json.Unmarshal(priorityChannels, &p.PriorityChannels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal priority channels: %w", err)
		}
	}
	return &p, nil
}

// Save upserts the full preference row for a user.
func (r *PreferenceRepository) Save(ctx context.Context, p *model.NotificationPreferences) error {
	r.logger.Debug("Saving preferences", zap.Int("user_id", p.UserID))

	categoryChannels, err := json.Marshal(p.CategoryChannels)
	if err != nil {
		return fmt.Errorf("failed to marshal category channels: %w", err)
	}
	priorityChannels, err := json.Marshal(p.PriorityChannels)
	if err != nil {
		return fmt.Errorf("failed to marshal priority channels: %w", err)
	}

	query := `
        INSERT INTO notification_preferences
            (user_id, digest_frequency, quiet_hours_start, quiet_hours_end,
             weekend_mode, vacation_mode, delegate_user_id,
             category_channels, priority_channels, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            digest_frequency  = EXCLUDED.digest_frequency,
            quiet_hours_start = EXCLUDED.quiet_hours_start,
            quiet_hours_end   = EXCLUDED.quiet_hours_end,
            weekend_mode      = EXCLUDED.weekend_mode,
            vacation_mode     = EXCLUDED.vacation_mode,
            delegate_user_id  = EXCLUDED.delegate_user_id,
            category_channels = EXCLUDED.category_channels,
            priority_channels = EXCLUDED.priority_channels,
            updated_at        = NOW()
    `
	_, err = r.db.Exec(ctx, query,
		p.UserID,
		p.DigestFrequency,
		p.QuietHoursStart,
		p.QuietHoursEnd,
		p.WeekendMode,
		p.VacationMode,
		p.DelegateUserID,
		categoryChannels,
		priorityChannels,
	)
	if err != nil {
		r.logger.Error("Failed to save preferences",
			zap.Error(err),
			zap.Int("user_id", p.UserID),
		)
		return err
	}

	r.logger.Info("Preferences saved successfully", zap.Int("user_id", p.UserID))
	return nil
}
