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

// ErrRuleNotFound is returned for updates or deletes against an unknown rule id.
var ErrRuleNotFound = errors.New("notification rule not found")

type RuleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRuleRepository(db *pgxpool.Pool, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]model.NotificationRule, error) {
	query := `
        SELECT id, name, description, entity_type, trigger_event, delay_hours, escalation_chain, active, created_at, updated_at
        FROM notification_rules
        WHERE active = TRUE
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query active rules", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return scanRules(rows)
}

func (r *RuleRepository) GetByID(ctx context.Context, id int) (*model.NotificationRule, error) {
	query := `
        SELECT id, name, description, entity_type, trigger_event, delay_hours, escalation_chain, active, created_at, updated_at
        FROM notification_rules
        WHERE id = $1
    `
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrRuleNotFound
	}
	return &rules[0], nil
}

func (r *RuleRepository) Create(ctx context.Context, rule *model.NotificationRule) (int, error) {
	r.logger.Debug("Creating rule",
		zap.String("name", rule.Name),
		zap.String("entity_type", string(rule.EntityType)),
		zap.String("trigger_event", string(rule.TriggerEvent)),
	)

	chain, err := json.Marshal(rule.Chain)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal escalation chain: %w", err)
	}

	query := `
        INSERT INTO notification_rules (name, description, entity_type, trigger_event, delay_hours, escalation_chain, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	var id int
	err = r.db.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		rule.EntityType,
		rule.TriggerEvent,
		rule.DelayHours,
		chain,
		rule.Active,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.Error(err), zap.String("name", rule.Name))
		return 0, err
	}

	r.logger.Info("Rule created successfully", zap.Int("rule_id", id), zap.String("name", rule.Name))
	return id, nil
}

func (r *RuleRepository) Update(ctx context.Context, rule *model.NotificationRule) error {
	chain, err := json.Marshal(rule.Chain)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation chain: %w", err)
	}

	query := `
        UPDATE notification_rules
        SET name = $2, description = $3, entity_type = $4, trigger_event = $5,
            delay_hours = $6, escalation_chain = $7, active = $8, updated_at = NOW()
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.EntityType,
		rule.TriggerEvent,
		rule.DelayHours,
		chain,
		rule.Active,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Error(err), zap.Int("rule_id", rule.ID))
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}

	r.logger.Info("Rule updated successfully", zap.Int("rule_id", rule.ID))
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notification_rules WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.Error(err), zap.Int("rule_id", id))
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}

	r.logger.Info("Rule deleted successfully", zap.Int("rule_id", id))
	return nil
}

func scanRules(rows pgx.Rows) ([]model.NotificationRule, error) {
	rules := []model.NotificationRule{}
	for rows.Next() {
		var rule model.NotificationRule
		var chain []byte
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Description,
			&rule.EntityType,
			&rule.TriggerEvent,
			&rule.DelayHours,
			&chain,
			&rule.Active,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(chain) > 0 {
			if err := json.Unmarshal(chain, &rule.Chain); err != nil {
				return nil, fmt.Errorf("failed to unmarshal escalation chain: %w", err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
