package repository

import (
	"context"
	"time"

	"peopleflow/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type HistoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHistoryRepository(db *pgxpool.Pool, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Insert appends one ledger row. The ledger is append-only: there are no
// update or delete operations on this table.
func (r *HistoryRepository) Insert(ctx context.Context, h *model.EscalationHistory) (int, error) {
	r.logger.Debug("Inserting escalation history",
		zap.Int("rule_id", h.RuleID),
		zap.String("entity_type", string(h.EntityType)),
		zap.Int("entity_id", h.EntityID),
		zap.Int("level", h.Level),
	)

	query := `
        INSERT INTO escalation_history
            (notification_id, rule_id, entity_type, entity_id, from_user_id, to_user_id, escalation_level, reason)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		h.NotificationID,
		h.RuleID,
		h.EntityType,
		h.EntityID,
		h.FromUserID,
		h.ToUserID,
		h.Level,
		h.Reason,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert escalation history",
			zap.Error(err),
			zap.Int("rule_id", h.RuleID),
			zap.Int("entity_id", h.EntityID),
		)
		return 0, err
	}

	r.logger.Info("Escalation history inserted",
		zap.Int("id", h.ID),
		zap.Int("rule_id", h.RuleID),
		zap.Int("entity_id", h.EntityID),
		zap.Int("to_user_id", h.ToUserID),
	)
	return h.ID, nil
}

// LastEscalatedAt returns when this rule last escalated this entity.
// The second return is false when it never has.
func (r *HistoryRepository) LastEscalatedAt(ctx context.Context, ruleID int, entityType model.EntityType, entityID int) (time.Time, bool, error) {
	query := `
        SELECT MAX(created_at)
        FROM escalation_history
        WHERE rule_id = $1 AND entity_type = $2 AND entity_id = $3
    `
	var last *time.Time
	err := r.db.QueryRow(ctx, query, ruleID, entityType, entityID).Scan(&last)
	if err != nil {
		r.logger.Error("Failed to query last escalation time",
			zap.Error(err),
			zap.Int("rule_id", ruleID),
			zap.Int("entity_id", entityID),
		)
		return time.Time{}, false, err
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// MaxLevel returns the highest chain level recorded for this rule and
// entity. The second return is false when no row exists yet.
func (r *HistoryRepository) MaxLevel(ctx context.Context, ruleID int, entityType model.EntityType, entityID int) (int, bool, error) {
	query := `
        SELECT MAX(escalation_level)
        FROM escalation_history
        WHERE rule_id = $1 AND entity_type = $2 AND entity_id = $3
    `
	var level *int
	err := r.db.QueryRow(ctx, query, ruleID, entityType, entityID).Scan(&level)
	if err != nil {
		r.logger.Error("Failed to query max escalation level",
			zap.Error(err),
			zap.Int("rule_id", ruleID),
			zap.Int("entity_id", entityID),
		)
		return 0, false, err
	}
	if level == nil {
		return 0, false, nil
	}
	return *level, true, nil
}

// ListForEntity returns the full escalation trail of one entity, newest first.
func (r *HistoryRepository) ListForEntity(ctx context.Context, entityType model.EntityType, entityID int) ([]model.EscalationHistory, error) {
	query := `
        SELECT id, notification_id, rule_id, entity_type, entity_id, from_user_id, to_user_id, escalation_level, reason, created_at
        FROM escalation_history
        WHERE entity_type = $1 AND entity_id = $2
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to query escalation history",
			zap.Error(err),
			zap.String("entity_type", string(entityType)),
			zap.Int("entity_id", entityID),
		)
		return nil, err
	}
	defer rows.Close()

	history := []model.EscalationHistory{}
	for rows.Next() {
		var h model.EscalationHistory
		if err := rows.Scan(
			&h.ID,
			&h.NotificationID,
			&h.RuleID,
			&h.EntityType,
			&h.EntityID,
			&h.FromUserID,
			&h.ToUserID,
			&h.Level,
			&h.Reason,
			&h.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}
